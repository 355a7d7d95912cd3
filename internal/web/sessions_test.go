package web

import (
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestSessionRegistry_NewSessionGetsCookieAndWelcome(t *testing.T) {
	reg := NewSessionRegistry("hello there")

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/", nil)

	sess := reg.Get(rec, req)

	cookies := rec.Result().Cookies()
	if len(cookies) != 1 || cookies[0].Name != sessionCookie {
		t.Fatalf("cookies = %v, want one %q cookie", cookies, sessionCookie)
	}
	if !cookies[0].HttpOnly {
		t.Error("session cookie should be HttpOnly")
	}

	turn, ok := sess.LastTurn()
	if !ok || turn.Content != "hello there" || !turn.Transient {
		t.Errorf("new session seed = %+v, want a transient welcome turn", turn)
	}
}

func TestSessionRegistry_SameCookieSameSession(t *testing.T) {
	reg := NewSessionRegistry("")

	rec := httptest.NewRecorder()
	first := reg.Get(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	cookie := rec.Result().Cookies()[0]

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.AddCookie(cookie)
	second := reg.Get(httptest.NewRecorder(), req)

	if first != second {
		t.Error("same cookie returned a different session")
	}
}

func TestSessionRegistry_DistinctCookiesDistinctSessions(t *testing.T) {
	reg := NewSessionRegistry("")

	a := reg.Get(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/", nil))
	b := reg.Get(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/", nil))

	if a == b {
		t.Error("requests without cookies should get separate sessions")
	}
}
