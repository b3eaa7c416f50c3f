package scoreboard

import (
	"fmt"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"ojcore/internal/auth"
	"ojcore/pkg/utils/response"

	appErr "ojcore/pkg/errors"
)

// Controller exposes the standings endpoint, including export.
type Controller struct {
	service *Service
}

// NewController creates the scoreboard controller.
func NewController(service *Service) *Controller {
	return &Controller{service: service}
}

// Register mounts the routes. Standings admit anonymous viewers; the
// service's own policy check gates what they see. Export still requires
// privilege, enforced in the service.
func (ctl *Controller) Register(rg *gin.RouterGroup) {
	rg.GET("/contests/:id/standings/", ctl.standings)
}

func (ctl *Controller) standings(c *gin.Context) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || id <= 0 {
		response.Error(c, appErr.ValidationError("id", "must be a positive integer"))
		return
	}
	format := c.Query("export")
	if format != "" && format != "csv" && format != "xlsx" {
		response.Error(c, appErr.ValidationError("export", "must be csv or xlsx"))
		return
	}
	export := format != ""

	standings, err := ctl.service.Standings(c.Request.Context(), auth.CurrentUser(c), id, export)
	if err != nil {
		response.Error(c, err)
		return
	}
	if !export {
		response.Success(c, standings)
		return
	}

	filename := fmt.Sprintf("standings-%d-%s", id, time.Now().Format("20060102-150405"))
	switch format {
	case "csv":
		data, err := ExportCSV(standings)
		if err != nil {
			response.Error(c, err)
			return
		}
		c.Header("Content-Disposition", `attachment; filename="`+filename+`.csv"`)
		c.Data(200, "text/csv", data)
	case "xlsx":
		data, err := ExportXLSX(standings)
		if err != nil {
			response.Error(c, err)
			return
		}
		c.Header("Content-Disposition", `attachment; filename="`+filename+`.xlsx"`)
		c.Data(200, "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet", data)
	}
}
