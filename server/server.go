// Copyright 2025 The Alumap Authors
// SPDX-License-Identifier: Apache-2.0

// Package server exposes the alumni map over HTTP.
package server

import (
	"bytes"
	"embed"
	"errors"
	"fmt"
	"html/template"
	"io/fs"
	"log"
	"net/http"
	"strconv"

	"github.com/beccons/alumap/alumni"
	"github.com/beccons/alumap/app"
	"github.com/gin-gonic/gin"
	"github.com/vmihailenco/msgpack/v5"
)

const (
	msgNotFound    = "Impossible de trouver cette ville. Essayez 'Ville, Pays'."
	msgStoreWrite  = "Erreur lors de l'enregistrement. Réessayez."
	msgStoreLoad   = "Impossible de charger les profils. Réessayez."
	msgNotReady    = "Chargement des profils en cours, réessayez dans un instant."
	msgInvalidBody = "Requête invalide."

	mimeMsgPack  = "application/msgpack"
	mimeXMsgPack = "application/x-msgpack"
)

//go:embed web/index.html web/static
var webFS embed.FS

type Server struct {
	app     *app.App
	metrics *metrics
}

func NewServer(a *app.App) *Server {
	return &Server{app: a, metrics: newMetrics(a)}
}

// Router builds the gin engine with every route registered.
func (s *Server) Router() *gin.Engine {
	r := gin.Default()
	s.register(r)

	return r
}

func (s *Server) register(r *gin.Engine) {
	r.SetHTMLTemplate(template.Must(template.New("").ParseFS(webFS, "web/index.html")))

	static, err := fs.Sub(webFS, "web/static")
	if err != nil {
		panic(fmt.Sprintf("embedded static files: %v", err))
	}

	r.Use(s.metrics.middleware)
	r.StaticFS("/static", http.FS(static))
	r.GET("/metrics", s.metrics.handler())

	r.GET("/", s.mapView)
	r.GET("/api/alumni", s.listAlumni)
	r.POST("/api/alumni", s.addAlumni)
	r.GET("/api/markers", s.markers)
	r.GET("/api/clusters", s.clusters)
	r.GET("/api/status", s.status)
	r.POST("/api/reload", s.reload)
}

// Run serves on addr until the listener fails.
func (s *Server) Run(addr string) error {
	log.Printf("🗺️  Alumni map listening on %s", addr)

	return s.Router().Run(addr)
}

func (s *Server) mapView(ctx *gin.Context) {
	ctx.HTML(http.StatusOK, "index.html", gin.H{
		"Title": "Alumni",
	})
}

func (s *Server) listAlumni(ctx *gin.Context) {
	records := s.app.Records()
	if records == nil {
		records = []alumni.Record{}
	}

	switch ctx.NegotiateFormat(gin.MIMEJSON, mimeMsgPack, mimeXMsgPack) {
	case mimeMsgPack, mimeXMsgPack:
		var buf bytes.Buffer

		enc := msgpack.NewEncoder(&buf)
		enc.SetCustomStructTag("json")

		if err := enc.Encode(records); err != nil {
			ctx.JSON(http.StatusInternalServerError, gin.H{"error": fmt.Sprintf("encoding records: %v", err)})

			return
		}

		ctx.Data(http.StatusOK, mimeMsgPack, buf.Bytes())
	default:
		ctx.JSON(http.StatusOK, records)
	}
}

func (s *Server) addAlumni(ctx *gin.Context) {
	var input alumni.ProfileInput
	if err := ctx.ShouldBindJSON(&input); err != nil {
		ctx.JSON(http.StatusBadRequest, gin.H{"error": msgInvalidBody})

		return
	}

	profile, err := s.app.AddProfile(ctx.Request.Context(), input)

	switch {
	case err == nil:
		ctx.JSON(http.StatusCreated, profile)
	case errors.Is(err, app.ErrInvalidProfile):
		ctx.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	case errors.Is(err, app.ErrGeocodeMiss):
		ctx.JSON(http.StatusUnprocessableEntity, gin.H{"error": msgNotFound})
	case errors.Is(err, app.ErrStoreWrite):
		log.Printf("❌ %v", err)
		ctx.JSON(http.StatusBadGateway, gin.H{"error": msgStoreWrite})
	case errors.Is(err, app.ErrNotReady):
		ctx.JSON(http.StatusServiceUnavailable, gin.H{"error": msgNotReady})
	default:
		ctx.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
	}
}

func (s *Server) markers(ctx *gin.Context) {
	ctx.JSON(http.StatusOK, s.app.MapView())
}

func (s *Server) clusters(ctx *gin.Context) {
	res := alumni.DefaultClusterResolution

	if v := ctx.Query("res"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			ctx.JSON(http.StatusBadRequest, gin.H{"error": "res must be an integer"})

			return
		}

		res = n
	}

	clusters, err := s.app.Clusters(res)
	if err != nil {
		ctx.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})

		return
	}

	if clusters == nil {
		clusters = []*alumni.Cluster{}
	}

	ctx.JSON(http.StatusOK, clusters)
}

func (s *Server) status(ctx *gin.Context) {
	ctx.JSON(http.StatusOK, s.app.Status())
}

func (s *Server) reload(ctx *gin.Context) {
	if err := s.app.Load(ctx.Request.Context()); err != nil {
		ctx.JSON(http.StatusServiceUnavailable, gin.H{"error": msgStoreLoad})

		return
	}

	ctx.JSON(http.StatusOK, s.app.Status())
}
