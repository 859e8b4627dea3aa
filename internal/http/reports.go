package http

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/vendorhub/vendor-engage/internal/model"
	"github.com/vendorhub/vendor-engage/internal/repository"
	"github.com/vendorhub/vendor-engage/internal/util"
)

func listMessagesHandler(archive repository.ArchiveRepository) echo.HandlerFunc {
	return func(c echo.Context) error {
		limit := 50
		offset := 0
		if v := c.QueryParam("limit"); v != "" {
			if n, err := strconv.Atoi(v); err == nil && n > 0 && n <= 1000 {
				limit = n
			}
		}
		if v := c.QueryParam("offset"); v != "" {
			if n, err := strconv.Atoi(v); err == nil && n >= 0 {
				offset = n
			}
		}

		var dir model.Direction
		if raw := strings.TrimSpace(c.QueryParam("direction")); raw != "" {
			tmp := model.Direction(raw)
			if tmp.Valid() {
				dir = tmp
			}
		}

		phone := ""
		if raw := strings.TrimSpace(c.QueryParam("phone")); raw != "" {
			phone = util.NormalizePhone(raw)
		}

		msgs, err := archive.List(c.Request().Context(), phone, dir, limit, offset)
		if err != nil {
			c.Logger().Errorf("archive list failed: %v", err)

			return c.JSON(http.StatusInternalServerError, map[string]string{"error": "query failed"})
		}

		return c.JSON(http.StatusOK, map[string]any{
			"limit":   limit,
			"offset":  offset,
			"count":   len(msgs),
			"results": msgs,
		})
	}
}
