package gateway

import (
	"context"
	"encoding/json"
	"math"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/packyr/tahoma2mqtt/internal/tahoma"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoginSendsCredentials(t *testing.T) {
	logins := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/login", r.URL.Path)
		assert.Equal(t, "user@example.com", r.FormValue("userId"))
		assert.Equal(t, "hunter2", r.FormValue("userPassword"))
		logins++
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "user@example.com", "hunter2")
	require.NoError(t, c.Login(context.Background()))
	assert.Equal(t, 1, logins)
}

func TestLoginRejectedCredentials(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "user@example.com", "wrong")
	assert.Error(t, c.Login(context.Background()))
}

func TestExecuteIssuesApplyRequest(t *testing.T) {
	var got applyRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/login":
		case "/exec/apply":
			require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
			json.NewEncoder(w).Encode(applyResponse{ExecID: "exec-42"})
		default:
			http.NotFound(w, r)
		}
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "user", "pass")
	execID, err := c.Execute(context.Background(), "io://1234-5678/1", tahoma.Command{
		Name:       tahoma.CmdSetClosure,
		Parameters: []float64{42},
	})
	require.NoError(t, err)
	assert.Equal(t, "exec-42", execID)

	assert.Equal(t, tahoma.CmdSetClosure, got.Label)
	require.Len(t, got.Actions, 1)
	assert.Equal(t, "io://1234-5678/1", got.Actions[0].DeviceURL)
	require.Len(t, got.Actions[0].Commands, 1)
	assert.Equal(t, []float64{42}, got.Actions[0].Commands[0].Parameters)
}

func TestExecuteReloginOnExpiredSession(t *testing.T) {
	logins := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/login":
			logins++
		case "/exec/apply":
			if logins < 2 {
				w.WriteHeader(http.StatusUnauthorized)
				return
			}
			json.NewEncoder(w).Encode(applyResponse{ExecID: "exec-1"})
		default:
			http.NotFound(w, r)
		}
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "user", "pass")
	require.NoError(t, c.Login(context.Background()))

	execID, err := c.Execute(context.Background(), "io://1/1", tahoma.Command{Name: tahoma.CmdOpen})
	require.NoError(t, err)
	assert.Equal(t, "exec-1", execID)
	assert.Equal(t, 2, logins)
}

func TestExecuteRejectsNaNParameters(t *testing.T) {
	c := NewClient("http://gateway.invalid", "user", "pass")

	_, err := c.Execute(context.Background(), "io://1/1", tahoma.Command{
		Name:       tahoma.CmdSetClosure,
		Parameters: []float64{math.NaN()},
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "apply request encode")
}

func TestExecutionStatus(t *testing.T) {
	t.Run("pending execution", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			require.Equal(t, "/exec/current/exec-1", r.URL.Path)
			json.NewEncoder(w).Encode(tahoma.ExecutionStatus{State: "IN_PROGRESS"})
		}))
		defer srv.Close()

		status, err := NewClient(srv.URL, "u", "p").ExecutionStatus(context.Background(), "exec-1")
		require.NoError(t, err)
		require.NotNil(t, status)
		assert.Equal(t, "IN_PROGRESS", status.State)
	})

	absenceCases := map[string]http.HandlerFunc{
		"not found": func(w http.ResponseWriter, _ *http.Request) {
			http.Error(w, "not found", http.StatusNotFound)
		},
		"no content": func(w http.ResponseWriter, _ *http.Request) {
			w.WriteHeader(http.StatusNoContent)
		},
		"empty body": func(w http.ResponseWriter, _ *http.Request) {},
		"null body": func(w http.ResponseWriter, _ *http.Request) {
			w.Write([]byte("null"))
		},
	}

	for name, handler := range absenceCases {
		t.Run(name+" means absence", func(t *testing.T) {
			srv := httptest.NewServer(handler)
			defer srv.Close()

			status, err := NewClient(srv.URL, "u", "p").ExecutionStatus(context.Background(), "exec-1")
			require.NoError(t, err)
			assert.Nil(t, status)
		})
	}

	t.Run("server error propagates", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			w.WriteHeader(http.StatusInternalServerError)
		}))
		defer srv.Close()

		_, err := NewClient(srv.URL, "u", "p").ExecutionStatus(context.Background(), "exec-1")
		assert.Error(t, err)
	})
}
