package submission

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"ojcore/internal/auth"
	"ojcore/internal/model"
	"ojcore/pkg/utils/response"

	appErr "ojcore/pkg/errors"
)

// Controller exposes the submission endpoints.
type Controller struct {
	service *Service
	stream  *StreamHandler
}

// NewController creates the submission controller. stream may be nil
// when live status streaming is disabled.
func NewController(service *Service, stream *StreamHandler) *Controller {
	return &Controller{service: service, stream: stream}
}

// Register mounts the routes on the authenticated group.
func (ctl *Controller) Register(rg *gin.RouterGroup) {
	rg.POST("/submissions/", ctl.create)
	rg.GET("/submissions/", ctl.list)
	rg.GET("/submissions/:id/", ctl.get)
	if ctl.stream != nil {
		rg.GET("/submissions/:id/stream", ctl.stream.Serve)
	}
}

func (ctl *Controller) create(c *gin.Context) {
	var req CreateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErr.BadRequest("Invalid request payload"))
		return
	}
	sub, err := ctl.service.Create(c.Request.Context(), auth.CurrentUser(c), &req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, sub)
}

func (ctl *Controller) get(c *gin.Context) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || id <= 0 {
		response.Error(c, appErr.ValidationError("id", "must be a positive integer"))
		return
	}
	detail, err := ctl.service.Get(c.Request.Context(), auth.CurrentUser(c), id)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, detail)
}

func (ctl *Controller) list(c *gin.Context) {
	filter, err := parseFilter(c)
	if err != nil {
		response.Error(c, err)
		return
	}
	subs, count, err := ctl.service.List(c.Request.Context(), auth.CurrentUser(c), filter)
	if err != nil {
		response.Error(c, err)
		return
	}
	next, previous := pageLinks(c, filter.Page, filter.PageSize, count)
	if subs == nil {
		subs = []model.Submission{}
	}
	response.Paginated(c, subs, count, next, previous)
}

func parseFilter(c *gin.Context) (Filter, error) {
	var filter Filter
	filter.SourceType = model.SourceType(c.Query("source_type"))
	if filter.SourceType != "" &&
		filter.SourceType != model.SourcePractice && filter.SourceType != model.SourceContest {
		return filter, appErr.ValidationError("source_type", "must be practice or contest")
	}
	if raw := c.Query("status"); raw != "" {
		if !model.ValidVerdict(raw) {
			return filter, appErr.ValidationError("status", "unknown verdict")
		}
		filter.Status = model.Verdict(raw)
	}
	var err error
	if filter.UserID, err = queryInt(c, "user"); err != nil {
		return filter, err
	}
	if filter.ProblemID, err = queryInt(c, "problem"); err != nil {
		return filter, err
	}
	if filter.ContestID, err = queryInt(c, "contest"); err != nil {
		return filter, err
	}
	if raw := c.Query("created_after"); raw != "" {
		t, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			return filter, appErr.ValidationError("created_after", "must be RFC3339")
		}
		filter.CreatedAfter = &t
	}
	filter.IncludeAll = c.Query("include_all") == "true"
	if filter.Page, err = queryIntDefault(c, "page", 1); err != nil {
		return filter, err
	}
	pageSize, err := queryIntDefault(c, "page_size", defaultPageSize)
	if err != nil {
		return filter, err
	}
	filter.PageSize = pageSize
	return filter, nil
}

func queryInt(c *gin.Context, name string) (int64, error) {
	raw := c.Query(name)
	if raw == "" {
		return 0, nil
	}
	v, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || v <= 0 {
		return 0, appErr.ValidationError(name, "must be a positive integer")
	}
	return v, nil
}

func queryIntDefault(c *gin.Context, name string, def int) (int, error) {
	raw := c.Query(name)
	if raw == "" {
		return def, nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil || v <= 0 {
		return 0, appErr.ValidationError(name, "must be a positive integer")
	}
	return v, nil
}

// pageLinks builds next/previous URLs preserving the request's query.
func pageLinks(c *gin.Context, page, pageSize int, count int64) (next, previous *string) {
	link := func(p int) *string {
		u := *c.Request.URL
		q := u.Query()
		q.Set("page", strconv.Itoa(p))
		u.RawQuery = q.Encode()
		s := u.String()
		return &s
	}
	if int64(page*pageSize) < count {
		next = link(page + 1)
	}
	if page > 1 {
		previous = link(page - 1)
	}
	return next, previous
}
