package handler_test

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sakif/broken-weave/internal/auth"
	"github.com/sakif/broken-weave/internal/handler"
	"github.com/sakif/broken-weave/internal/model"
	"github.com/sakif/broken-weave/internal/repository/sqlite"
	"github.com/sakif/broken-weave/internal/service"
	"github.com/sakif/broken-weave/internal/storage"
)

// testEnv wires the real services against an in-memory database and a
// temp-dir file store, mounted on the same routes the server uses. Tests
// exercise the full handler → service → repository path.
type testEnv struct {
	router http.Handler
	db     *sqlite.DB
	tokens *auth.TokenService
}

func newTestEnv(t *testing.T, files storage.Store) *testEnv {
	t.Helper()

	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelError}))

	db, err := sqlite.New(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	tokens, err := auth.NewTokenService("test-secret-at-least-16-chars!!")
	require.NoError(t, err)
	passwords := auth.NewPasswordServiceForTest(4)

	authHandler := handler.NewAuthHandler(
		service.NewAuthService(db, tokens, passwords, logger), logger)
	personHandler := handler.NewPersonHandler(
		service.NewPersonService(db, files, logger), logger)
	volunteerHandler := handler.NewVolunteerHandler(
		service.NewVolunteerService(db, logger), logger)
	healthHandler := handler.NewHealthHandler(db, logger)

	r := chi.NewRouter()
	r.Route("/api", func(r chi.Router) {
		r.Post("/register", authHandler.HandleRegister)
		r.Post("/login", authHandler.HandleLogin)
		r.Get("/health", healthHandler.HandleHealth)

		r.Post("/missing-persons", personHandler.HandleReport)
		r.Get("/missing-persons", personHandler.HandleList)
		r.Get("/missing-persons/search", personHandler.HandleSearch)
		r.Get("/success-stories", personHandler.HandleSuccessStories)
		r.Post("/volunteer/register", volunteerHandler.HandleRegister)

		r.Group(func(r chi.Router) {
			r.Use(auth.RequireAuth(tokens))
			r.Use(auth.RequireAdmin)

			r.Get("/volunteers", volunteerHandler.HandleList)
			r.Patch("/missing-persons/{id}/found", personHandler.HandleMarkFound)
			r.Patch("/missing-persons/{id}/image", personHandler.HandleReplaceImage)
			r.Patch("/missing-persons/{id}", personHandler.HandleUpdate)
			r.Delete("/missing-persons/{id}", personHandler.HandleDelete)
		})
	})

	if files != nil {
		uploadsHandler := handler.NewUploadsHandler(files, logger)
		r.Get("/uploads/{name}", uploadsHandler.HandleServe)
	}

	return &testEnv{router: r, db: db, tokens: tokens}
}

func (e *testEnv) do(t *testing.T, method, target, token string, body io.Reader, contentType string) *httptest.ResponseRecorder {
	t.Helper()

	req := httptest.NewRequest(method, target, body)
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rr := httptest.NewRecorder()
	e.router.ServeHTTP(rr, req)
	return rr
}

func (e *testEnv) doJSON(t *testing.T, method, target, token, body string) *httptest.ResponseRecorder {
	return e.do(t, method, target, token, strings.NewReader(body), "application/json")
}

// adminToken creates an admin account directly in the repository (there is
// no HTTP route that grants admin) and returns a token for it.
func (e *testEnv) adminToken(t *testing.T) string {
	t.Helper()

	user := &model.User{
		Username:     "admin",
		Email:        "admin@example.com",
		PasswordHash: "irrelevant",
		IsAdmin:      true,
	}
	require.NoError(t, e.db.CreateUser(context.Background(), user))

	token, err := e.tokens.Generate(user.ID, user.Username, true)
	require.NoError(t, err)
	return token
}

func (e *testEnv) userToken(t *testing.T) string {
	t.Helper()

	user := &model.User{
		Username:     "plain",
		Email:        "plain@example.com",
		PasswordHash: "irrelevant",
	}
	require.NoError(t, e.db.CreateUser(context.Background(), user))

	token, err := e.tokens.Generate(user.ID, user.Username, false)
	require.NoError(t, err)
	return token
}

// reportPerson posts a minimal valid JSON report and returns the new id.
func (e *testEnv) reportPerson(t *testing.T) int64 {
	t.Helper()

	rr := e.doJSON(t, http.MethodPost, "/api/missing-persons", "",
		`{"name":"Jane Doe","category":"adult","last_known_location":"Park Ave","contact_info":"555-0100"}`)
	require.Equal(t, http.StatusCreated, rr.Code, rr.Body.String())

	var resp struct {
		ID int64 `json:"id"`
	}
	require.NoError(t, json.NewDecoder(rr.Body).Decode(&resp))
	return resp.ID
}

// multipartReport builds a multipart report body with an attached image.
func multipartReport(t *testing.T, fields map[string]string, imageName, imageContent string) (*bytes.Buffer, string) {
	t.Helper()

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	for k, v := range fields {
		require.NoError(t, mw.WriteField(k, v))
	}
	if imageName != "" {
		fw, err := mw.CreateFormFile("image", imageName)
		require.NoError(t, err)
		_, err = fw.Write([]byte(imageContent))
		require.NoError(t, err)
	}
	require.NoError(t, mw.Close())
	return &buf, mw.FormDataContentType()
}

func TestRegisterAndLogin(t *testing.T) {
	env := newTestEnv(t, nil)

	rr := env.doJSON(t, http.MethodPost, "/api/register", "",
		`{"username":"jane","email":"jane@example.com","password":"hunter22"}`)
	assert.Equal(t, http.StatusCreated, rr.Code, rr.Body.String())

	t.Run("duplicate username conflicts", func(t *testing.T) {
		rr := env.doJSON(t, http.MethodPost, "/api/register", "",
			`{"username":"jane","email":"other@example.com","password":"pw"}`)
		assert.Equal(t, http.StatusConflict, rr.Code)
	})

	t.Run("missing field rejected", func(t *testing.T) {
		rr := env.doJSON(t, http.MethodPost, "/api/register", "",
			`{"username":"nobody","password":"pw"}`)
		assert.Equal(t, http.StatusBadRequest, rr.Code)
	})

	t.Run("login returns token and sanitized user", func(t *testing.T) {
		rr := env.doJSON(t, http.MethodPost, "/api/login", "",
			`{"username":"jane","password":"hunter22"}`)
		require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
		raw := rr.Body.String()

		var resp struct {
			Token string `json:"token"`
			User  struct {
				ID       int64  `json:"id"`
				Username string `json:"username"`
				IsAdmin  bool   `json:"is_admin"`
			} `json:"user"`
		}
		require.NoError(t, json.Unmarshal([]byte(raw), &resp))
		assert.NotEmpty(t, resp.Token)
		assert.Equal(t, "jane", resp.User.Username)
		assert.False(t, resp.User.IsAdmin)
		assert.NotContains(t, raw, "password")
	})

	t.Run("wrong password is 401", func(t *testing.T) {
		rr := env.doJSON(t, http.MethodPost, "/api/login", "",
			`{"username":"jane","password":"wrong"}`)
		assert.Equal(t, http.StatusUnauthorized, rr.Code)
	})
}

func TestReportAndList(t *testing.T) {
	env := newTestEnv(t, nil)

	id := env.reportPerson(t)
	assert.Positive(t, id)

	rr := env.do(t, http.MethodGet, "/api/missing-persons", "", nil, "")
	require.Equal(t, http.StatusOK, rr.Code)

	var persons []model.Person
	require.NoError(t, json.NewDecoder(rr.Body).Decode(&persons))
	require.Len(t, persons, 1)
	assert.Equal(t, "Jane Doe", persons[0].Name)
	assert.Equal(t, model.StatusMissing, persons[0].Status)
	assert.Nil(t, persons[0].ImageURL)
}

func TestReportWithImage(t *testing.T) {
	files, err := storage.NewLocal(t.TempDir())
	require.NoError(t, err)
	env := newTestEnv(t, files)

	body, contentType := multipartReport(t, map[string]string{
		"name":                "Jane Doe",
		"category":            "adult",
		"last_known_location": "Park Ave",
		"contact_info":        "555-0100",
	}, "photo.jpg", "jpeg-bytes")

	rr := env.do(t, http.MethodPost, "/api/missing-persons", "", body, contentType)
	require.Equal(t, http.StatusCreated, rr.Code, rr.Body.String())

	var resp struct {
		ImageURL *string `json:"imageUrl"`
	}
	require.NoError(t, json.NewDecoder(rr.Body).Decode(&resp))
	require.NotNil(t, resp.ImageURL)

	t.Run("image is served back", func(t *testing.T) {
		rr := env.do(t, http.MethodGet, *resp.ImageURL, "", nil, "")
		require.Equal(t, http.StatusOK, rr.Code)
		assert.Equal(t, "jpeg-bytes", rr.Body.String())
		assert.Equal(t, "image/jpeg", rr.Header().Get("Content-Type"))
	})
}

func TestReportValidationWithImage(t *testing.T) {
	files, err := storage.NewLocal(t.TempDir())
	require.NoError(t, err)
	env := newTestEnv(t, files)

	// contact_info missing
	body, contentType := multipartReport(t, map[string]string{
		"name":                "Jane Doe",
		"category":            "adult",
		"last_known_location": "Park Ave",
	}, "photo.jpg", "jpeg-bytes")

	rr := env.do(t, http.MethodPost, "/api/missing-persons", "", body, contentType)
	assert.Equal(t, http.StatusBadRequest, rr.Code)
}

func TestSearch(t *testing.T) {
	env := newTestEnv(t, nil)
	env.reportPerson(t)

	rr := env.do(t, http.MethodGet, "/api/missing-persons/search?q=park&category=all", "", nil, "")
	require.Equal(t, http.StatusOK, rr.Code)

	var resp struct {
		Results []model.Person `json:"results"`
	}
	require.NoError(t, json.NewDecoder(rr.Body).Decode(&resp))
	assert.Len(t, resp.Results, 1)

	t.Run("category filter excludes", func(t *testing.T) {
		rr := env.do(t, http.MethodGet, "/api/missing-persons/search?q=park&category=child", "", nil, "")
		require.Equal(t, http.StatusOK, rr.Code)

		var resp struct {
			Results []model.Person `json:"results"`
		}
		require.NoError(t, json.NewDecoder(rr.Body).Decode(&resp))
		assert.Empty(t, resp.Results)
	})
}

func TestSuccessStories(t *testing.T) {
	env := newTestEnv(t, nil)
	token := env.adminToken(t)

	id := env.reportPerson(t)
	rr := env.doJSON(t, http.MethodPatch, fmt.Sprintf("/api/missing-persons/%d/found", id), token, "")
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())

	rr = env.do(t, http.MethodGet, "/api/success-stories", "", nil, "")
	require.Equal(t, http.StatusOK, rr.Code)

	var resp struct {
		Stories []model.Person `json:"stories"`
	}
	require.NoError(t, json.NewDecoder(rr.Body).Decode(&resp))
	require.Len(t, resp.Stories, 1)
	assert.Equal(t, model.StatusFound, resp.Stories[0].Status)
}

func TestAdminRoutesRequireAdmin(t *testing.T) {
	env := newTestEnv(t, nil)
	id := env.reportPerson(t)
	target := fmt.Sprintf("/api/missing-persons/%d/found", id)

	t.Run("no token is 401", func(t *testing.T) {
		rr := env.doJSON(t, http.MethodPatch, target, "", "")
		assert.Equal(t, http.StatusUnauthorized, rr.Code)
	})

	t.Run("non-admin token is 403", func(t *testing.T) {
		rr := env.doJSON(t, http.MethodPatch, target, env.userToken(t), "")
		assert.Equal(t, http.StatusForbidden, rr.Code)
	})

	t.Run("admin token succeeds", func(t *testing.T) {
		rr := env.doJSON(t, http.MethodPatch, target, env.adminToken(t), "")
		assert.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	})
}

func TestUpdateAndDelete(t *testing.T) {
	env := newTestEnv(t, nil)
	token := env.adminToken(t)
	id := env.reportPerson(t)

	rr := env.doJSON(t, http.MethodPatch, fmt.Sprintf("/api/missing-persons/%d", id), token,
		`{"name":"Jane D.","category":"adult","last_known_location":"5th Ave","contact_info":"555-0100"}`)
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())

	t.Run("update unknown id is 404", func(t *testing.T) {
		rr := env.doJSON(t, http.MethodPatch, "/api/missing-persons/999", token,
			`{"name":"X","category":"adult","last_known_location":"Y","contact_info":"Z"}`)
		assert.Equal(t, http.StatusNotFound, rr.Code)
	})

	t.Run("non-numeric id is 400", func(t *testing.T) {
		rr := env.doJSON(t, http.MethodPatch, "/api/missing-persons/abc", token, `{}`)
		assert.Equal(t, http.StatusBadRequest, rr.Code)
	})

	rr = env.doJSON(t, http.MethodDelete, fmt.Sprintf("/api/missing-persons/%d", id), token, "")
	require.Equal(t, http.StatusOK, rr.Code)

	rr = env.doJSON(t, http.MethodDelete, fmt.Sprintf("/api/missing-persons/%d", id), token, "")
	assert.Equal(t, http.StatusNotFound, rr.Code)
}

func TestReplaceImageWithoutStorage(t *testing.T) {
	env := newTestEnv(t, nil)
	token := env.adminToken(t)
	id := env.reportPerson(t)

	body, contentType := multipartReport(t, nil, "photo.jpg", "new-bytes")
	rr := env.do(t, http.MethodPatch, fmt.Sprintf("/api/missing-persons/%d/image", id), token, body, contentType)
	assert.Equal(t, http.StatusNotImplemented, rr.Code, rr.Body.String())
}

func TestReplaceImage(t *testing.T) {
	files, err := storage.NewLocal(t.TempDir())
	require.NoError(t, err)
	env := newTestEnv(t, files)
	token := env.adminToken(t)
	id := env.reportPerson(t)

	body, contentType := multipartReport(t, nil, "photo.png", "png-bytes")
	rr := env.do(t, http.MethodPatch, fmt.Sprintf("/api/missing-persons/%d/image", id), token, body, contentType)
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())

	var resp struct {
		NewImageURL string `json:"newImageUrl"`
	}
	require.NoError(t, json.NewDecoder(rr.Body).Decode(&resp))
	assert.True(t, strings.HasPrefix(resp.NewImageURL, storage.URLPrefix))

	t.Run("missing file is 400", func(t *testing.T) {
		body, contentType := multipartReport(t, map[string]string{"unrelated": "field"}, "", "")
		rr := env.do(t, http.MethodPatch, fmt.Sprintf("/api/missing-persons/%d/image", id), token, body, contentType)
		assert.Equal(t, http.StatusBadRequest, rr.Code)
	})
}

func TestVolunteerRoutes(t *testing.T) {
	env := newTestEnv(t, nil)

	rr := env.doJSON(t, http.MethodPost, "/api/volunteer/register", "",
		`{"name":"Sam Rivera","email":"sam@example.com","skills":"logistics","availability":"weekends"}`)
	require.Equal(t, http.StatusCreated, rr.Code, rr.Body.String())

	var created struct {
		VolunteerID int64 `json:"volunteerId"`
	}
	require.NoError(t, json.NewDecoder(rr.Body).Decode(&created))
	assert.Positive(t, created.VolunteerID)

	t.Run("list requires admin", func(t *testing.T) {
		rr := env.do(t, http.MethodGet, "/api/volunteers", "", nil, "")
		assert.Equal(t, http.StatusUnauthorized, rr.Code)
	})

	t.Run("admin sees the volunteer", func(t *testing.T) {
		rr := env.do(t, http.MethodGet, "/api/volunteers", env.adminToken(t), nil, "")
		require.Equal(t, http.StatusOK, rr.Code)

		var volunteers []model.Volunteer
		require.NoError(t, json.NewDecoder(rr.Body).Decode(&volunteers))
		require.Len(t, volunteers, 1)
		assert.Equal(t, "Sam Rivera", volunteers[0].Name)
	})
}

func TestHealth(t *testing.T) {
	env := newTestEnv(t, nil)

	rr := env.do(t, http.MethodGet, "/api/health", "", nil, "")
	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Body.String(), `"status":"ok"`)
}
