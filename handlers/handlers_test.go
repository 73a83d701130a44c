package handlers_test

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"virasocial/auth"
	"virasocial/engage"
	"virasocial/feed"
	"virasocial/handlers"
	"virasocial/notify"
	"virasocial/routes"
	"virasocial/search"
	"virasocial/social"
	"virasocial/store"
	"virasocial/store/memstore"
	"virasocial/websocket"
)

func setupServer(t *testing.T) *gin.Engine {
	return setupServerWith(t, memstore.New())
}

func setupServerWith(t *testing.T, st store.Store) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)

	m := st
	webPush := notify.NewWebPush(m, "mailto:dev@example.com", "", "")
	fanout := notify.NewFanout(m, webPush)
	engine := engage.NewEngine(m, fanout)

	handlers.Setup(
		m,
		auth.NewService(m, auth.SecretFromEnv()),
		social.NewGraph(m, fanout),
		feed.NewAssembler(m),
		engine,
		fanout,
		webPush,
		search.NewIndex(m),
	)

	return routes.SetupRouter(websocket.NewManager(engine))
}

func doJSON(t *testing.T, router *gin.Engine, method, path, token string, body interface{}) (*httptest.ResponseRecorder, map[string]interface{}) {
	t.Helper()

	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req, err := http.NewRequest(method, path, &buf)
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	out := map[string]interface{}{}
	if w.Body.Len() > 0 {
		_ = json.Unmarshal(w.Body.Bytes(), &out)
	}
	return w, out
}

func signup(t *testing.T, router *gin.Engine, username, email string) (userID, token string) {
	t.Helper()
	w, resp := doJSON(t, router, http.MethodPost, "/api/signup", "", gin.H{
		"username": username,
		"email":    email,
		"password": "hunter22",
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	return resp["userId"].(string), resp["token"].(string)
}

func TestSignupLoginFlow(t *testing.T) {
	router := setupServer(t)

	_, token := signup(t, router, "sema_dev", "sema@example.com")
	require.NotEmpty(t, token)

	w, resp := doJSON(t, router, http.MethodPost, "/api/login", "", gin.H{
		"email":    "sema@example.com",
		"password": "hunter22",
	})
	require.Equal(t, http.StatusOK, w.Code)
	assert.NotEmpty(t, resp["token"])

	w, _ = doJSON(t, router, http.MethodPost, "/api/login", "", gin.H{
		"email":    "sema@example.com",
		"password": "wrong-pass",
	})
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w, _ = doJSON(t, router, http.MethodPost, "/api/signup", "", gin.H{
		"username": "imposter",
		"email":    "sema@example.com",
		"password": "hunter33",
	})
	assert.Equal(t, http.StatusConflict, w.Code)
}

func TestProtectedRoutesRequireToken(t *testing.T) {
	router := setupServer(t)

	w, _ := doJSON(t, router, http.MethodGet, "/api/feed", "", nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w, _ = doJSON(t, router, http.MethodGet, "/api/me", "not-a-token", nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestPostAndFeedFlow(t *testing.T) {
	router := setupServer(t)

	_, writerToken := signup(t, router, "writer", "writer@example.com")
	writerID := ""
	{
		w, resp := doJSON(t, router, http.MethodGet, "/api/me", writerToken, nil)
		require.Equal(t, http.StatusOK, w.Code)
		writerID = resp["id"].(string)
	}
	_, readerToken := signup(t, router, "reader", "reader@example.com")

	w, post := doJSON(t, router, http.MethodPost, "/api/post", writerToken, gin.H{
		"text": "hello feed",
		"type": "job",
	})
	require.Equal(t, http.StatusCreated, w.Code)
	postID := post["id"].(string)

	// reader does not follow writer yet, feed is empty
	w, resp := doJSON(t, router, http.MethodGet, "/api/feed", readerToken, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, float64(0), resp["count"])

	w, _ = doJSON(t, router, http.MethodPost, "/api/user/"+writerID+"/follow", readerToken, nil)
	require.Equal(t, http.StatusOK, w.Code)

	w, resp = doJSON(t, router, http.MethodGet, "/api/feed", readerToken, nil)
	require.Equal(t, http.StatusOK, w.Code)
	require.Equal(t, float64(1), resp["count"])

	// type filter
	w, resp = doJSON(t, router, http.MethodGet, "/api/feed?type=social", readerToken, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, float64(0), resp["count"])

	// like and comment notify the writer
	w, resp = doJSON(t, router, http.MethodPost, "/api/post/"+postID+"/like", readerToken, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, true, resp["liked"])

	w, _ = doJSON(t, router, http.MethodPost, "/api/post/"+postID+"/comment", readerToken, gin.H{"text": "great"})
	require.Equal(t, http.StatusCreated, w.Code)

	w, resp = doJSON(t, router, http.MethodGet, "/api/notifications", writerToken, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, float64(3), resp["count"]) // follow + like + comment
}

func TestEditRequiresOwnership(t *testing.T) {
	router := setupServer(t)

	_, ownerToken := signup(t, router, "owner", "owner@example.com")
	_, otherToken := signup(t, router, "other", "other@example.com")

	w, post := doJSON(t, router, http.MethodPost, "/api/post", ownerToken, gin.H{"text": "mine"})
	require.Equal(t, http.StatusCreated, w.Code)
	postID := post["id"].(string)

	w, _ = doJSON(t, router, http.MethodPut, "/api/post/"+postID, otherToken, gin.H{"text": "hijack"})
	assert.Equal(t, http.StatusForbidden, w.Code)

	w, _ = doJSON(t, router, http.MethodDelete, "/api/post/"+postID, otherToken, nil)
	assert.Equal(t, http.StatusForbidden, w.Code)

	w, _ = doJSON(t, router, http.MethodPut, "/api/post/"+postID, ownerToken, gin.H{"text": "edited"})
	assert.Equal(t, http.StatusOK, w.Code)

	w, _ = doJSON(t, router, http.MethodDelete, "/api/post/"+postID, ownerToken, nil)
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestSavedFeedFlow(t *testing.T) {
	router := setupServer(t)

	_, token := signup(t, router, "saver", "saver@example.com")

	w, post := doJSON(t, router, http.MethodPost, "/api/post", token, gin.H{"text": "bookmark me"})
	require.Equal(t, http.StatusCreated, w.Code)
	postID := post["id"].(string)

	w, resp := doJSON(t, router, http.MethodPost, "/api/post/"+postID+"/save", token, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, true, resp["saved"])

	w, resp = doJSON(t, router, http.MethodGet, "/api/feed/saved", token, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, float64(1), resp["count"])

	w, resp = doJSON(t, router, http.MethodPost, "/api/post/"+postID+"/save", token, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, false, resp["saved"])
}

func TestSearchEndpoint(t *testing.T) {
	router := setupServer(t)

	_, token := signup(t, router, "sema_dev", "sema@example.com")
	signup(t, router, "ahmet", "ahmet@example.com")

	w, resp := doJSON(t, router, http.MethodGet, "/api/users/search?q=ahm", token, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, float64(1), resp["count"])

	// caller is excluded from their own results
	w, resp = doJSON(t, router, http.MethodGet, "/api/users/search?q=sema", token, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, float64(0), resp["count"])

	w, resp = doJSON(t, router, http.MethodGet, "/api/users/search?q=", token, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, float64(0), resp["count"])
}

func TestFollowStats(t *testing.T) {
	router := setupServer(t)

	starID, _ := signup(t, router, "star", "star@example.com")
	_, fanToken := signup(t, router, "fan", "fan@example.com")

	w, _ := doJSON(t, router, http.MethodPost, "/api/user/"+starID+"/follow", fanToken, nil)
	require.Equal(t, http.StatusOK, w.Code)

	w, resp := doJSON(t, router, http.MethodGet, fmt.Sprintf("/api/user/%s/follow-stats", starID), fanToken, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, float64(1), resp["followers"])
	assert.Equal(t, float64(0), resp["following"])

	// self follow is rejected at the surface
	w, _ = doJSON(t, router, http.MethodPost, "/api/user/"+starID+"/follow", fanToken, nil)
	require.Equal(t, http.StatusOK, w.Code) // idempotent re-follow is fine

	_, selfToken := signup(t, router, "loner", "loner@example.com")
	var selfID string
	{
		w, resp := doJSON(t, router, http.MethodGet, "/api/me", selfToken, nil)
		require.Equal(t, http.StatusOK, w.Code)
		selfID = resp["id"].(string)
	}
	w, _ = doJSON(t, router, http.MethodPost, "/api/user/"+selfID+"/follow", selfToken, nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

// layeredStore wraps every store error with extra context, the way a
// driver adapter annotates failures before handing them up.
type layeredStore struct {
	store.Store
}

func (l *layeredStore) Get(ctx context.Context, collection, id string) (store.Doc, error) {
	doc, err := l.Store.Get(ctx, collection, id)
	if err != nil {
		return doc, fmt.Errorf("layered get %s/%s: %w", collection, id, err)
	}
	return doc, nil
}

type brokenCounts struct {
	store.Store
}

func (b *brokenCounts) Count(ctx context.Context, collection string, q store.Query) (int64, error) {
	return 0, store.ErrUnavailable
}

func TestWrappedNotFoundStillReadsAsMissing(t *testing.T) {
	router := setupServerWith(t, &layeredStore{Store: memstore.New()})

	_, token := signup(t, router, "sema_dev", "sema@example.com")

	w, _ := doJSON(t, router, http.MethodPut, "/api/post/no-such-post", token, gin.H{
		"text": "edited",
	})
	assert.Equal(t, http.StatusNotFound, w.Code, w.Body.String())

	w, _ = doJSON(t, router, http.MethodDelete, "/api/post/no-such-post", token, nil)
	assert.Equal(t, http.StatusNotFound, w.Code, w.Body.String())
}

func TestProfileSurfacesFollowerCountFailure(t *testing.T) {
	router := setupServerWith(t, &brokenCounts{Store: memstore.New()})

	userID, token := signup(t, router, "sema_dev", "sema@example.com")

	w, _ := doJSON(t, router, http.MethodGet, "/api/me", token, nil)
	assert.Equal(t, http.StatusServiceUnavailable, w.Code, w.Body.String())

	w, _ = doJSON(t, router, http.MethodGet, "/api/user/"+userID, token, nil)
	assert.Equal(t, http.StatusServiceUnavailable, w.Code, w.Body.String())
}
