package middleware

import (
	"net/http"

	"github.com/labstack/echo/v4"
)

// AuthJWTがcontextに入れたroleを見てADMINだけ通す。
// 管理系ルート（/admin配下、返金エンドポイント）で使う
func AdminRoleGuard() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			role, ok := c.Get(CtxUserRoleKey).(string)
			if !ok || role == "" {
				//AuthJWTを通っていない
				return c.JSON(http.StatusUnauthorized, errorJSON("unauthorized"))
			}

			if role != "ADMIN" {
				return c.JSON(http.StatusForbidden, errorJSON("admin only"))
			}

			return next(c)
		}
	}
}
