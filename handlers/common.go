package handlers

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"virasocial/auth"
	"virasocial/engage"
	"virasocial/feed"
	"virasocial/notify"
	"virasocial/search"
	"virasocial/social"
	"virasocial/store"
)

// Common constants and variables shared across all handler files
const fallbackAvatar = "https://upload.wikimedia.org/wikipedia/commons/8/89/Portrait_Placeholder.png"

var (
	docs      store.Store
	authSvc   *auth.Service
	graph     *social.Graph
	feeds     *feed.Assembler
	engine    *engage.Engine
	fanout    *notify.Fanout
	webPush   *notify.WebPush
	userIndex *search.Index
)

// Setup wires the handler package to its services. Called once from
// main before the router starts.
func Setup(st store.Store, a *auth.Service, g *social.Graph, f *feed.Assembler, e *engage.Engine, n *notify.Fanout, wp *notify.WebPush, idx *search.Index) {
	docs = st
	authSvc = a
	graph = g
	feeds = f
	engine = e
	fanout = n
	webPush = wp
	userIndex = idx
}

func requestContext() (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.Background(), 10*time.Second)
}

// storeStatus maps the store's error taxonomy to an HTTP status.
func storeStatus(err error) int {
	switch {
	case errors.Is(err, store.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, store.ErrUnavailable):
		return http.StatusServiceUnavailable
	case errors.Is(err, store.ErrWriteConflict):
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

func abortStoreError(c *gin.Context, err error, message string) {
	c.JSON(storeStatus(err), gin.H{"error": message})
}
