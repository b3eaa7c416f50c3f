package problem

import (
	"strconv"

	"github.com/gin-gonic/gin"

	"ojcore/internal/auth"
	"ojcore/pkg/utils/response"

	appErr "ojcore/pkg/errors"
)

// Controller exposes the test-data package endpoints. Both are
// privileged; students never touch test data.
type Controller struct {
	packs *PackService
}

// NewController creates the problem controller.
func NewController(packs *PackService) *Controller {
	return &Controller{packs: packs}
}

// Register mounts the routes on the authenticated group.
func (ctl *Controller) Register(rg *gin.RouterGroup) {
	rg.GET("/problems/:id/testdata/", ctl.download)
	rg.POST("/problems/:id/testdata/export/", ctl.export)
	rg.POST("/problems/:id/testdata/import/", ctl.importPack)
}

func (ctl *Controller) problemID(c *gin.Context) (int64, bool) {
	user := auth.CurrentUser(c)
	if !user.IsPrivilegedRole() {
		response.Error(c, appErr.ForbiddenError("Test data requires staff privileges"))
		return 0, false
	}
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || id <= 0 {
		response.Error(c, appErr.ValidationError("id", "must be a positive integer"))
		return 0, false
	}
	return id, true
}

// download streams the packed archive straight to the caller.
func (ctl *Controller) download(c *gin.Context) {
	id, ok := ctl.problemID(c)
	if !ok {
		return
	}
	data, err := ctl.packs.BuildPack(c.Request.Context(), id)
	if err != nil {
		response.Error(c, err)
		return
	}
	c.Header("Content-Disposition", `attachment; filename="testdata-`+strconv.FormatInt(id, 10)+`.tar.zst"`)
	c.Data(200, packContentType, data)
}

// export mirrors the archive into object storage.
func (ctl *Controller) export(c *gin.Context) {
	id, ok := ctl.problemID(c)
	if !ok {
		return
	}
	key, err := ctl.packs.Export(c.Request.Context(), id)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, gin.H{"key": key})
}

// importPack replaces the problem's test cases from the request body, or
// from object storage when the body is empty.
func (ctl *Controller) importPack(c *gin.Context) {
	id, ok := ctl.problemID(c)
	if !ok {
		return
	}
	var count int
	var err error
	if c.Request.ContentLength > 0 {
		count, err = ctl.packs.Import(c.Request.Context(), id, c.Request.Body)
	} else {
		count, err = ctl.packs.ImportFromStorage(c.Request.Context(), id)
	}
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, gin.H{"imported": count})
}
