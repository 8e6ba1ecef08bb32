package targetprocess_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/m-mizutani/gt"

	"github.com/potenza-io/opsbot/pkg/service/targetprocess"
)

func TestClientPostTime(t *testing.T) {
	var got map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gt.Value(t, r.Method).Equal(http.MethodPost)
		gt.Value(t, r.URL.Path).Equal("/api/v1/Times")
		gt.Value(t, r.URL.Query().Get("access_token")).Equal("token")
		gt.NoError(t, json.NewDecoder(r.Body).Decode(&got)).Required()
		w.WriteHeader(http.StatusCreated)
	}))
	defer srv.Close()

	c, err := targetprocess.New(srv.URL, "token")
	gt.NoError(t, err).Required()

	err = c.PostTime(context.Background(), &targetprocess.PostTimeRequest{
		Description:  "PTO logged by assistant",
		Spent:        8,
		Date:         "2025-03-10",
		AssignableID: 5001,
		UserID:       101,
	})
	gt.NoError(t, err).Required()

	gt.Value(t, got["Date"]).Equal("2025-03-10")
	gt.Value(t, got["Spent"]).Equal(8.0)
	assignable := got["Assignable"].(map[string]any)
	gt.Value(t, assignable["Id"]).Equal(float64(5001))
	user := got["User"].(map[string]any)
	gt.Value(t, user["Id"]).Equal(float64(101))
}

func TestClientListTimes(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gt.Value(t, r.URL.Path).Equal("/api/v2/times")
		gt.Value(t, r.URL.Query().Get("where")).Equal("(user.id==101) and (assignable.id==5001)")
		gt.Value(t, r.URL.Query().Get("select")).Equal("{id,date,spent}")
		w.Header().Set("Content-Type", "application/json")
		// Dates arrive in the legacy ms form and must come back normalized
		_, _ = w.Write([]byte(`{"items": [
			{"id": 7, "date": "/Date(1741564800000-0500)/", "spent": 8},
			{"id": 8, "date": "2025-03-11", "spent": 4}
		]}`))
	}))
	defer srv.Close()

	c, err := targetprocess.New(srv.URL, "token")
	gt.NoError(t, err).Required()

	entries, err := c.ListTimes(context.Background(), 101, 5001)
	gt.NoError(t, err).Required()
	gt.Array(t, entries).Length(2)
	gt.Value(t, entries[0]).Equal(targetprocess.TimeEntry{ID: 7, Date: "2025-03-10", Spent: 8})
	gt.Value(t, entries[1]).Equal(targetprocess.TimeEntry{ID: 8, Date: "2025-03-11", Spent: 4})
}

func TestClientDeleteTime(t *testing.T) {
	var path string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gt.Value(t, r.Method).Equal(http.MethodDelete)
		path = r.URL.Path
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	c, err := targetprocess.New(srv.URL, "token")
	gt.NoError(t, err).Required()

	gt.NoError(t, c.DeleteTime(context.Background(), 42)).Required()
	gt.Value(t, path).Equal("/api/v1/times/42")
}

func TestClientUpdateTime(t *testing.T) {
	var got map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gt.NoError(t, json.NewDecoder(r.Body).Decode(&got)).Required()
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	c, err := targetprocess.New(srv.URL, "token")
	gt.NoError(t, err).Required()

	date := "2025-03-12"
	gt.NoError(t, c.UpdateTime(context.Background(), 42, &date, nil)).Required()

	gt.Value(t, got["Id"]).Equal(float64(42))
	gt.Value(t, got["Date"]).Equal("2025-03-12")
	_, hasSpent := got["Spent"]
	gt.Value(t, hasSpent).Equal(false)

	err = c.UpdateTime(context.Background(), 42, nil, nil)
	gt.Error(t, err)
}

func TestClientUserDirectory(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gt.Value(t, r.URL.Path).Equal("/api/v1/Users")
		where := r.URL.Query().Get("where")
		w.Header().Set("Content-Type", "application/xml")
		switch where {
		case "(Email contains 'alice')":
			_, _ = w.Write([]byte(`<Users><User Id="101" FirstName="Alice" LastName="Smith" Email="alice@example.com" /></Users>`))
		case "(FirstName contains 'Bob') and (LastName contains 'Jones')":
			_, _ = w.Write([]byte(`<Users><User Id="102" FirstName="Bob" LastName="Jones" Email="bob@example.com" /></Users>`))
		default:
			_, _ = w.Write([]byte(`<Users></Users>`))
		}
	}))
	defer srv.Close()

	c, err := targetprocess.New(srv.URL, "token")
	gt.NoError(t, err).Required()

	users, err := c.FindUsersByEmailLocalPart(context.Background(), "alice")
	gt.NoError(t, err).Required()
	gt.Array(t, users).Length(1)
	gt.Value(t, users[0]).Equal(targetprocess.User{
		ID: 101, FirstName: "Alice", LastName: "Smith", Email: "alice@example.com",
	})

	users, err = c.FindUsersByName(context.Background(), "Bob", "Jones")
	gt.NoError(t, err).Required()
	gt.Array(t, users).Length(1)
	gt.Value(t, users[0].ID).Equal(int64(102))

	_, err = c.FindUsersByName(context.Background(), "", "")
	gt.Error(t, err)
}

func TestClientRestartService(t *testing.T) {
	var hit bool
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gt.Value(t, r.Method).Equal(http.MethodPost)
		hit = true
	}))
	defer srv.Close()

	c, err := targetprocess.New(srv.URL, "token", targetprocess.WithRestartURL(srv.URL+"/restart"))
	gt.NoError(t, err).Required()

	gt.NoError(t, c.RestartService(context.Background())).Required()
	gt.Value(t, hit).Equal(true)

	noRestart, err := targetprocess.New(srv.URL, "token")
	gt.NoError(t, err).Required()
	gt.Error(t, noRestart.RestartService(context.Background()))
}
