package service

import (
	"strings"

	"audiencepulse/internal/core/content"
	"audiencepulse/internal/core/metrics"
	"audiencepulse/internal/platform/logger"
	"audiencepulse/internal/services/pulse/domain"
)

// aggregate runs once every target is terminal: engagement per collected target,
// the pipeline over all collected content, then the report
func (s *Svc) aggregate(j *job) {
	if j.ctx.Err() != nil {
		return
	}
	j.mu.Lock()
	colls := make([]domain.Collection, 0, len(j.targets))
	for _, t := range j.targets {
		colls = append(colls, j.colls[t.Key()])
	}
	req := j.snap.Request
	dups := append([]string(nil), j.snap.Duplicates...)
	j.mu.Unlock()

	report := &domain.Report{
		Fingerprint: j.fp,
		Transparency: domain.Transparency{
			Duplicates: dups,
			Targets:    make([]domain.TargetStatus, 0, len(colls)),
		},
	}
	var items []content.Item
	var kinds []string
	for _, c := range colls {
		st := domain.TargetStatus{
			Target:         c.Target.Key(),
			Platform:       c.Target.Platform,
			Link:           c.Target.Link,
			PostsTruncated: c.PostsTruncated,
			Attempts:       c.Attempts,
			FromCache:      c.FromCache,
		}
		switch {
		case c.Err != nil && c.Attempts == 0:
			st.Status = domain.TargetSkipped
			st.ErrorKind, st.Message = c.Err.Kind, c.Err.Message
			report.Transparency.Partial = true
			kinds = append(kinds, string(c.Err.Kind))
		case c.Err != nil:
			st.Status = domain.TargetFailed
			st.ErrorKind, st.Message = c.Err.Kind, c.Err.Message
			report.Transparency.Partial = true
			kinds = append(kinds, string(c.Err.Kind))
		default:
			st.Status = domain.TargetOK
			res := metrics.ComputeEngagement(c.Target.Platform, c.Profile, c.Items, c.PostsTruncated)
			st.CommentsTruncated = res.CommentsTruncated
			report.Platforms = append(report.Platforms, domain.PlatformReport{
				Target:      c.Target.Key(),
				DisplayName: c.Profile.DisplayName,
				Result:      res,
			})
			items = append(items, c.Items...)
		}
		report.Transparency.Targets = append(report.Transparency.Targets, st)
	}

	if len(report.Platforms) == 0 {
		s.finish(j, domain.StateFailed, nil, &domain.JobError{
			Code:         domain.FailAllPlatformsUnavailable,
			Message:      "no platform returned data: " + strings.Join(kinds, ", "),
			Transparency: &report.Transparency,
		})
		return
	}

	art := s.pipe.RunWith(j.ctx, items, req.SentimentLimit)
	if j.ctx.Err() != nil {
		return
	}
	report.Summary = art.Summary
	report.Sentiment = art.Sentiment
	report.Keywords = art.Keywords
	report.Clusters = art.Clusters
	report.Transparency.StageWarnings = art.Warnings
	report.Transparency.Spam = art.Spam
	report.Transparency.SentimentCapped = art.Sentiment.Capped
	report.GeneratedAt = s.clock.Now()

	logger.C(j.ctx).Debug().
		Int("items", len(items)).
		Int("keywords", len(art.Keywords)).
		Int("warnings", len(art.Warnings)).
		Msg("job aggregated")
	s.finish(j, domain.StateCompleted, report, nil)
}
