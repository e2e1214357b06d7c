package restapi

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// RegisterRoutes attaches the gateway's API surface to the router. Middleware
// (CORS, logging, recovery) is wired by the caller.
func RegisterRoutes(router *gin.Engine, handler *GatewayHandler) {
	router.GET("/healthz", func(c *gin.Context) { c.Status(http.StatusOK) })

	v1 := router.Group("/api/v1")
	{
		v1.GET("/chains", handler.GetChainsHandler)
		v1.GET("/tokens", handler.GetTokensHandler)
		v1.GET("/prices/:symbol", handler.GetPriceHandler)

		swap := v1.Group("/chains/:chainId/swap")
		{
			swap.GET("", handler.GetSwapHandler)
			swap.POST("/from-token", handler.SelectSwapFromTokenHandler)
			swap.POST("/to-token", handler.SelectSwapToTokenHandler)
			swap.POST("/amount", handler.SetSwapAmountHandler)
			swap.POST("/max", handler.SetSwapMaxAmountHandler)
			swap.POST("/switch", handler.SwitchSwapTokensHandler)
			swap.POST("/refresh", handler.RefreshSwapHandler)
			swap.POST("/approve", handler.ApproveSwapHandler)
			swap.POST("/execute", handler.ExecuteSwapHandler)
		}

		pool := v1.Group("/chains/:chainId/pool")
		{
			pool.GET("", handler.GetPoolHandler)
			pool.POST("/token-a", handler.SelectPoolTokenAHandler)
			pool.POST("/token-b", handler.SelectPoolTokenBHandler)
			pool.POST("/confirm-pair", handler.ConfirmPoolPairHandler)
			pool.POST("/back", handler.BackToPoolPairHandler)
			pool.POST("/amount-a", handler.SetPoolAmountAHandler)
			pool.POST("/amount-b", handler.SetPoolAmountBHandler)
			pool.POST("/max", handler.SetPoolMaxAmountHandler)
			pool.POST("/approve", handler.ApprovePoolLegHandler)
			pool.POST("/add", handler.AddLiquidityHandler)
			pool.POST("/remove", handler.RemoveLiquidityHandler)
		}

		flowSettings := v1.Group("/settings/:flow")
		{
			flowSettings.GET("", handler.GetSettingsHandler)
			flowSettings.POST("/slippage", handler.SetSlippageHandler)
			flowSettings.POST("/deadline", handler.SetDeadlineHandler)
			flowSettings.POST("/encryption/toggle", handler.ToggleEncryptionHandler)
		}

		v1.GET("/preferences/theme", handler.GetThemeHandler)
		v1.PUT("/preferences/theme", handler.SetThemeHandler)
	}
}
