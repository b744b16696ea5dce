// Package http provides the HTTP transport for audience pulse jobs
package http

import (
	stdhttp "net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"audiencepulse/internal/core/links"
	"audiencepulse/internal/modkit/httpkit"
	perr "audiencepulse/internal/platform/errors"
	"audiencepulse/internal/services/pulse/domain"
)

// Register mounts the pulse endpoints on r
func Register(r httpkit.Router, s domain.ServicePort, so StreamOptions) {
	h := &handlers{svc: s, stream: newStreamer(s, so)}

	httpkit.PostJSON[AnalyzeInput](r, "/analyze", h.analyze)
	httpkit.PostJSON[ResolveInput](r, "/resolve", h.resolve)
	httpkit.Get(r, "/jobs/{id}", h.job)
	httpkit.Delete(r, "/jobs/{id}", h.cancel)
	r.Get("/jobs/{id}/stream", h.stream.serve)
}

type handlers struct {
	svc    domain.ServicePort
	stream *streamer
}

// AnalyzeInput is the analyze request body. link is the single link form and is
// merged into links
type AnalyzeInput struct {
	Links          []string `json:"links" validate:"required_without=Link"`
	Link           string   `json:"link,omitempty" validate:"omitempty,max=2048"`
	PostLimit      int      `json:"post_limit,omitempty" validate:"gte=0"`
	CommentLimit   int      `json:"comment_limit,omitempty" validate:"gte=0"`
	SentimentLimit int      `json:"sentiment_limit,omitempty" validate:"gte=0"`
	Mode           string   `json:"mode,omitempty" validate:"omitempty,oneof=auto sync async"`
}

// Request merges the single link form and maps the body onto a domain request
func (in AnalyzeInput) Request() domain.Request {
	ls := append([]string(nil), in.Links...)
	if l := strings.TrimSpace(in.Link); l != "" {
		ls = append([]string{l}, ls...)
	}
	return domain.Request{
		Links:          ls,
		PostLimit:      in.PostLimit,
		CommentLimit:   in.CommentLimit,
		SentimentLimit: in.SentimentLimit,
		Mode:           domain.Mode(strings.ToLower(in.Mode)),
	}
}

// AcceptedResponse is returned when a job continues in the background
type AcceptedResponse struct {
	JobID  string        `json:"job_id" example:"5b0c8a3e-1f7d-4c55-a1a4-0a8f4b1f9d1e"`
	Status domain.Status `json:"status" example:"processing"`
}

// ReportResponse is a finished analysis
type ReportResponse struct {
	JobID  string         `json:"job_id"`
	Status domain.Status  `json:"status" example:"completed"`
	Cached bool           `json:"cached"`
	Report *domain.Report `json:"report"`
}

// ResolveInput is the resolve request body
type ResolveInput struct {
	Links []string `json:"links" validate:"required,min=1"`
}

// ResolveResponse lists the deduplicated targets of a set of links
type ResolveResponse struct {
	Targets     []links.Target `json:"targets"`
	Duplicates  []string       `json:"duplicates"`
	Fingerprint string         `json:"fingerprint"`
}

// swagger:route POST /pulse/analyze Pulse pulseAnalyze
// @Summary Analyze the audience behind a set of social links
// @Tags Pulse
// @Accept json
// @Produce json
// @Param payload body AnalyzeInput true "Links and sampling limits"
// @Success 200 {object} ReportResponse "completed"
// @Success 202 {object} AcceptedResponse "processing"
// @Router /pulse/analyze [post]
func (h *handlers) analyze(r *stdhttp.Request, in AnalyzeInput) (any, error) {
	out, err := h.svc.Analyze(r.Context(), in.Request())
	if err != nil {
		return nil, err
	}
	if out.Async {
		return httpkit.Accepted(AcceptedResponse{JobID: out.Job.ID, Status: domain.StatusProcessing}), nil
	}
	if out.Job.State == domain.StateFailed {
		return nil, failure(out.Job)
	}
	return ReportResponse{JobID: out.Job.ID, Status: out.Job.Status, Cached: out.Cached, Report: out.Job.Report}, nil
}

// swagger:route POST /pulse/resolve Pulse pulseResolve
// @Summary Classify and deduplicate links without analysing them
// @Tags Pulse
// @Accept json
// @Produce json
// @Param payload body ResolveInput true "Links"
// @Success 200 {object} ResolveResponse "ok"
// @Router /pulse/resolve [post]
func (h *handlers) resolve(_ *stdhttp.Request, in ResolveInput) (any, error) {
	res, err := h.svc.Resolve(in.Links)
	if err != nil {
		return nil, err
	}
	dups := res.Duplicates
	if dups == nil {
		dups = []string{}
	}
	return ResolveResponse{Targets: res.Targets, Duplicates: dups, Fingerprint: links.Fingerprint(res.Targets)}, nil
}

// swagger:route GET /pulse/jobs/{id} Pulse pulseJob
// @Summary Poll a job
// @Tags Pulse
// @Produce json
// @Param id path string true "Job id"
// @Success 200 {object} domain.Job "ok"
// @Router /pulse/jobs/{id} [get]
func (h *handlers) job(r *stdhttp.Request) (any, error) {
	return h.svc.Job(r.Context(), chi.URLParam(r, "id"))
}

// swagger:route DELETE /pulse/jobs/{id} Pulse pulseCancel
// @Summary Cancel a running job
// @Tags Pulse
// @Produce json
// @Param id path string true "Job id"
// @Success 200 {object} domain.Job "ok"
// @Router /pulse/jobs/{id} [delete]
func (h *handlers) cancel(r *stdhttp.Request) (any, error) {
	return h.svc.Cancel(r.Context(), chi.URLParam(r, "id"))
}

// failure maps a failed job onto the error envelope
func failure(j domain.Job) error {
	if j.Error == nil {
		return perr.Internalf("job %s failed", j.ID)
	}
	var code perr.ErrorCode
	switch j.Error.Code {
	case domain.FailInvalidInput:
		code = perr.ErrorCodeInvalidArgument
	case domain.FailAllPlatformsUnavailable:
		code = perr.ErrorCodeUnavailable
	case domain.FailCancelled:
		code = perr.ErrorCodeCancelled
	default:
		code = perr.ErrorCodeUnknown
	}
	err := perr.WithOp(perr.New(code, j.Error.Message), "job "+j.ID)
	if j.Error.Transparency != nil {
		err = perr.WithDetails(err, FailureDetails{JobID: j.ID, Transparency: j.Error.Transparency})
	}
	return err
}

// FailureDetails rides in the error envelope's data when a sync job fails
type FailureDetails struct {
	JobID        string               `json:"job_id"`
	Transparency *domain.Transparency `json:"transparency"`
}
