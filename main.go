package main

import (
	"log"

	"fishing-platform/internal"

	"github.com/caarlos0/env/v11"
	"github.com/gin-gonic/gin"
)

type config struct {
	DatabaseURL string `env:"DATABASE_URL,required"`
	JWTSecret   string `env:"JWT_SECRET,required"`
	Port        string `env:"PORT" envDefault:"8080"`
}

func main() {
	var cfg config
	if err := env.Parse(&cfg); err != nil {
		log.Fatal(err)
	}

	pool := internal.MustDB(cfg.DatabaseURL)
	defer pool.Close()

	store := internal.NewPGStore(pool)
	svc := internal.NewCompetitionService(store)
	audit := internal.NewAuditLog(pool)

	r := gin.Default()

	api := r.Group("/api")
	{
		api.POST("/auth/register", internal.Register(store, audit))
		api.POST("/auth/login", internal.Login(store, cfg.JWTSecret, audit))
		api.POST("/auth/logout", internal.Logout())

		auth := api.Group("", internal.Auth(cfg.JWTSecret))
		{
			auth.GET("/me", internal.Me(store))
			auth.PUT("/me", internal.UpdateMe(store))
			auth.GET("/users/:uid", internal.GetUserByID(store))
			auth.GET("/users/search/:nickname", internal.SearchUsers(store))

			comps := auth.Group("/competitions")
			{
				comps.POST("", internal.CreateCompetition(svc, audit))
				comps.GET("", internal.GetCompetition(svc))
				comps.DELETE("", internal.DeleteCompetition(svc, audit))
				comps.GET("/invites", internal.ListCompetitionInvites(svc))
				comps.PATCH("/start", internal.StartCompetition(svc, audit))
				comps.POST("/invite/:uid", internal.InviteUser(svc, audit))
				comps.PATCH("/:cid/accept", internal.AcceptInvite(svc, audit))
				comps.DELETE("/quit", internal.QuitCompetition(svc, audit))
				comps.DELETE("/remove/:uid", internal.RemoveUser(svc, audit))
				comps.DELETE("/save", internal.SaveCompetitionResult(svc, audit))
			}

			auth.POST("/catches", internal.AddCatch(store, audit))
			auth.DELETE("/catches/:fid", internal.RemoveCatch(store, audit))

			auth.POST("/reports/:uid", internal.ReportUser(store, audit))
			auth.GET("/reports/:rid", internal.RequireRole("moderator", "admin"), internal.GetReport(store))
		}
	}

	log.Printf("Listening on :%s", cfg.Port)
	_ = r.Run(":" + cfg.Port)
}
