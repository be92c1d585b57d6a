package people_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/contactbook/contactbook-api/core"
	"github.com/contactbook/contactbook-api/people"
)

const pageOne = `{
  "connections": [
    {
      "resourceName": "people/c1",
      "names": [{"displayName": "Ada Lovelace"}],
      "emailAddresses": [{"value": "ada@example.com"}, {"value": "second@example.com"}],
      "phoneNumbers": [{"value": "+44 20 7946 0000"}],
      "photos": [{"url": "https://photos.example.com/ada.jpg"}],
      "organizations": [{"name": "Analytical Engines Ltd", "title": "Engineer"}],
      "addresses": [{"formattedValue": "12 St James Sq, London"}],
      "biographies": [{"value": "First programmer"}]
    },
    {
      "resourceName": "people/c2",
      "names": [{"displayName": "No Photo"}]
    },
    {
      "resourceName": "people/c3"
    },
    {
      "emailAddresses": [{"value": "anon1@example.com"}]
    }
  ],
  "nextPageToken": "page-2"
}`

const pageTwo = `{
  "connections": [
    {
      "resourceName": "people/c4",
      "emailAddresses": [{"value": "nameless@example.com"}]
    },
    {
      "phoneNumbers": [{"value": "+1 555 0100"}]
    }
  ]
}`

func TestConnections(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer tok" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		if got := r.URL.Query().Get("personFields"); !strings.Contains(got, "biographies") {
			t.Errorf("personFields missing biographies: %q", got)
		}
		if r.URL.Query().Get("pageToken") == "page-2" {
			_, _ = w.Write([]byte(pageTwo))
			return
		}
		_, _ = w.Write([]byte(pageOne))
	}))
	defer srv.Close()

	c := people.NewClient(people.WithBaseURL(srv.URL))

	contacts, err := c.Connections(context.Background(), "tok")
	if err != nil {
		t.Fatalf("Connections failed: %v", err)
	}

	// c3 has no name/email/phone and is dropped; c4 and the second
	// anonymous record come from page 2.
	if len(contacts) != 5 {
		t.Fatalf("expected 5 contacts, got %d: %+v", len(contacts), contacts)
	}

	ada := contacts[0]
	if ada.ID != "people/c1" || ada.Name != "Ada Lovelace" {
		t.Errorf("unexpected first contact: %+v", ada)
	}
	if ada.Email != "ada@example.com" {
		t.Errorf("expected first email, got %q", ada.Email)
	}
	if ada.Company != "Analytical Engines Ltd" || ada.Job != "Engineer" {
		t.Errorf("organization not mapped: %+v", ada)
	}
	if ada.Avatar != "https://photos.example.com/ada.jpg" {
		t.Errorf("photo not mapped: %q", ada.Avatar)
	}

	noPhoto := contacts[1]
	if !strings.Contains(noPhoto.Avatar, "ui-avatars.com") {
		t.Errorf("expected fallback avatar, got %q", noPhoto.Avatar)
	}
	if !strings.Contains(noPhoto.Avatar, "No+Photo") {
		t.Errorf("fallback avatar should carry the name: %q", noPhoto.Avatar)
	}

	nameless := contacts[3]
	if nameless.Name != core.UnknownName || nameless.Email != "nameless@example.com" {
		t.Errorf("unexpected page-2 contact: %+v", nameless)
	}

	// Records without a resourceName get fallback IDs numbered by kept
	// contacts, so they never collide across pages.
	if contacts[2].ID != "contact-2" {
		t.Errorf("page-1 fallback id: got %q, want contact-2", contacts[2].ID)
	}
	if contacts[4].ID != "contact-4" {
		t.Errorf("page-2 fallback id: got %q, want contact-4", contacts[4].ID)
	}
}

func TestConnections_Unauthorized(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer srv.Close()

	c := people.NewClient(people.WithBaseURL(srv.URL))

	_, err := c.Connections(context.Background(), "stale")
	if !errors.Is(err, core.ErrUpstream) {
		t.Errorf("expected ErrUpstream, got %v", err)
	}
}

func TestConnections_ServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
		_ = json.NewEncoder(w).Encode(map[string]string{"error": "backend unavailable"})
	}))
	defer srv.Close()

	c := people.NewClient(people.WithBaseURL(srv.URL))

	_, err := c.Connections(context.Background(), "tok")
	if !errors.Is(err, core.ErrUpstream) {
		t.Errorf("expected ErrUpstream, got %v", err)
	}
	if !strings.Contains(err.Error(), "502") {
		t.Errorf("error should carry the status: %v", err)
	}
}
