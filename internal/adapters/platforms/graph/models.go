package graph

import (
	"strings"
	"time"
)

// timeLayout is the Graph timestamp format
const timeLayout = "2006-01-02T15:04:05-0700"

type gTime struct{ time.Time }

func (t *gTime) UnmarshalJSON(b []byte) error {
	s := strings.Trim(string(b), `"`)
	if s == "" || s == "null" {
		return nil
	}
	v, err := time.Parse(timeLayout, s)
	if err != nil {
		v, err = time.Parse(time.RFC3339, s)
	}
	if err != nil {
		return err
	}
	t.Time = v.UTC()
	return nil
}

type paging struct {
	Cursors struct {
		After string `json:"after"`
	} `json:"cursors"`
	Next string `json:"next"`
}

type summary struct {
	Summary struct {
		TotalCount int64 `json:"total_count"`
	} `json:"summary"`
}

// Facebook

type fbPage struct {
	ID             string `json:"id"`
	Name           string `json:"name"`
	FollowersCount int64  `json:"followers_count"`
	FanCount       int64  `json:"fan_count"`
}

type fbPost struct {
	ID          string `json:"id"`
	Message     string `json:"message"`
	CreatedTime gTime  `json:"created_time"`
	Shares      struct {
		Count int64 `json:"count"`
	} `json:"shares"`
	Reactions summary `json:"reactions"`
	Comments  summary `json:"comments"`
}

type fbPosts struct {
	Data   []fbPost `json:"data"`
	Paging paging   `json:"paging"`
}

type fbComment struct {
	Message string `json:"message"`
	From    struct {
		Name string `json:"name"`
	} `json:"from"`
}

type fbComments struct {
	Data   []fbComment `json:"data"`
	Paging paging      `json:"paging"`
}

// Instagram

type igMedia struct {
	ID            string `json:"id"`
	Caption       string `json:"caption"`
	CommentsCount int64  `json:"comments_count"`
	LikeCount     int64  `json:"like_count"`
	Timestamp     gTime  `json:"timestamp"`
}

type igDiscovery struct {
	BusinessDiscovery struct {
		ID             string `json:"id"`
		Username       string `json:"username"`
		Name           string `json:"name"`
		FollowersCount int64  `json:"followers_count"`
		Media          struct {
			Data   []igMedia `json:"data"`
			Paging paging    `json:"paging"`
		} `json:"media"`
	} `json:"business_discovery"`
}

type igComment struct {
	Text     string `json:"text"`
	Username string `json:"username"`
}

type igComments struct {
	Data   []igComment `json:"data"`
	Paging paging      `json:"paging"`
}
