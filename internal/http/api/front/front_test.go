package front

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/guess2/dailytrivia/internal/cache"
	"github.com/guess2/dailytrivia/internal/config"
	"github.com/guess2/dailytrivia/internal/db"
	"github.com/guess2/dailytrivia/internal/http/respond"
	"github.com/guess2/dailytrivia/internal/leaderboard"
	"github.com/guess2/dailytrivia/internal/models"
	"github.com/guess2/dailytrivia/internal/payment"
	"github.com/guess2/dailytrivia/internal/payment/paymenttest"
	"github.com/guess2/dailytrivia/internal/play"
	"github.com/guess2/dailytrivia/internal/security"
	"github.com/guess2/dailytrivia/internal/subscription"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

const testSecret = "test-secret"

type testServer struct {
	engine    *gin.Engine
	db        *gorm.DB
	processor *paymenttest.Processor
	attempts  *play.Manager
}

type envelope struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data"`
	Error   string          `json:"error"`
	Message string          `json:"message"`
	Cached  *bool           `json:"cached"`
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	gin.SetMode(gin.TestMode)

	conn, err := db.Open("file:" + filepath.Join(t.TempDir(), "front.db"))
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	if err = db.Migrate(conn); err != nil {
		t.Fatalf("migrate: %v", err)
	}

	processor := paymenttest.New()
	processor.AddSubscription(payment.SubscriptionDetail{
		ID:                 "sub_123",
		CustomerID:         "cus_9",
		Status:             "active",
		PriceID:            "price_monthly",
		CurrentPeriodStart: time.Date(2026, 4, 1, 0, 0, 0, 0, time.UTC),
		CurrentPeriodEnd:   time.Date(2026, 5, 1, 0, 0, 0, 0, time.UTC),
	})
	attempts := play.NewManager(conn, play.ManagerOptions{})
	cfg := config.Config{FrontendURL: "http://front.test"}
	cfg.JWT.Secret = testSecret
	cfg.JWT.Expiry = time.Hour

	engine := gin.New()
	engine.Use(respond.Recovery(), respond.Errors())
	RegisterFrontRoutes(engine, Deps{
		DB:            conn,
		Config:        cfg,
		Leaderboard:   leaderboard.NewService(leaderboard.NewGormSource(conn), cache.NewMemoryCache(nil), nil),
		Subscriptions: subscription.NewService(conn, processor, subscription.Options{FrontendURL: "http://front.test", AllowedPriceIDs: []string{"price_monthly"}}),
		Processor:     processor,
		Attempts:      attempts,
	})
	return &testServer{engine: engine, db: conn, processor: processor, attempts: attempts}
}

func (s *testServer) do(t *testing.T, method, path string, body any, headers map[string]string) (*httptest.ResponseRecorder, envelope) {
	t.Helper()
	var reader *bytes.Reader
	switch v := body.(type) {
	case nil:
		reader = bytes.NewReader(nil)
	case []byte:
		reader = bytes.NewReader(v)
	default:
		raw, err := json.Marshal(v)
		if err != nil {
			t.Fatalf("marshal body: %v", err)
		}
		reader = bytes.NewReader(raw)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	rec := httptest.NewRecorder()
	s.engine.ServeHTTP(rec, req)

	var env envelope
	if rec.Body.Len() > 0 {
		if err := json.Unmarshal(rec.Body.Bytes(), &env); err != nil {
			t.Fatalf("decode %s %s: %v (%s)", method, path, err, rec.Body.String())
		}
	}
	return rec, env
}

func (s *testServer) createUser(t *testing.T, name string, points int, admin bool) models.User {
	t.Helper()
	user := models.User{Email: name + "@example.com", Username: name, PasswordHash: "x", TotalPoints: points, IsAdmin: admin}
	if err := s.db.Create(&user).Error; err != nil {
		t.Fatalf("create user: %v", err)
	}
	return user
}

func (s *testServer) createChallenge(t *testing.T, title, date string, premium bool) models.Challenge {
	t.Helper()
	challenge := models.Challenge{
		Title:      title,
		Difficulty: models.DifficultyEasy,
		Category:   "Geography",
		Tags:       datatypes.JSON(`["capitals"]`),
		TimeLimit:  300,
		IsPremium:  premium,
		ActiveDate: date,
		IsActive:   true,
		Questions: []models.Question{
			{QuestionText: "Capital of France?", QuestionType: models.QuestionTypeMultipleChoice, OrderIndex: 1, PointsValue: 10, Answers: []models.Answer{
				{AnswerText: "Paris", IsCorrect: true, OrderIndex: 1},
				{AnswerText: "Lyon", OrderIndex: 2},
			}},
			{QuestionText: "Capital of Japan?", QuestionType: models.QuestionTypeMultipleChoice, OrderIndex: 2, PointsValue: 10, Answers: []models.Answer{
				{AnswerText: "Tokyo", IsCorrect: true, OrderIndex: 1},
				{AnswerText: "Osaka", OrderIndex: 2},
			}},
		},
	}
	if err := s.db.Create(&challenge).Error; err != nil {
		t.Fatalf("create challenge: %v", err)
	}
	return challenge
}

func bearer(t *testing.T, user models.User) map[string]string {
	t.Helper()
	token, err := security.IssueUserToken(testSecret, user.ID, user.IsAdmin, time.Hour)
	if err != nil {
		t.Fatalf("issue token: %v", err)
	}
	return map[string]string{"Authorization": "Bearer " + token}
}

func checkoutEvent(id string, user models.User) payment.Event {
	return payment.Event{
		ID:   id,
		Type: "checkout.session.completed",
		Kind: payment.EventCheckoutCompleted,
		Checkout: &payment.CheckoutSession{
			ID:             "cs_1",
			UserID:         strconv.FormatUint(user.ID, 10),
			SubscriptionID: "sub_123",
			CustomerID:     "cus_9",
		},
	}
}

func countRows(t *testing.T, conn *gorm.DB, model any) int64 {
	t.Helper()
	var n int64
	if err := conn.Model(model).Count(&n).Error; err != nil {
		t.Fatalf("count: %v", err)
	}
	return n
}

func TestWebhook_RejectsUnverifiedDeliveries(t *testing.T) {
	srv := newTestServer(t)
	user := srv.createUser(t, "payer", 0, false)
	body := paymenttest.EncodeEvent(checkoutEvent("evt_1", user))

	rec, env := srv.do(t, http.MethodPost, "/api/payments/webhook", body, nil)
	if rec.Code != http.StatusBadRequest || env.Error != "Missing signature or webhook secret" {
		t.Fatalf("expected 400 missing signature, got %d %q", rec.Code, env.Error)
	}

	rec, env = srv.do(t, http.MethodPost, "/api/payments/webhook", body, map[string]string{"Stripe-Signature": "t=1,v1=forged"})
	if rec.Code != http.StatusBadRequest || env.Error != "Invalid signature" {
		t.Fatalf("expected 400 invalid signature, got %d %q", rec.Code, env.Error)
	}

	if n := countRows(t, srv.db, &models.WebhookEvent{}); n != 0 {
		t.Fatalf("expected no journaled events, got %d", n)
	}
	if n := countRows(t, srv.db, &models.Subscription{}); n != 0 {
		t.Fatalf("expected no subscriptions, got %d", n)
	}
	var stored models.User
	if err := srv.db.First(&stored, user.ID).Error; err != nil {
		t.Fatalf("load user: %v", err)
	}
	if stored.IsPremium {
		t.Fatalf("unverified delivery must not grant premium")
	}
}

func TestWebhook_AcknowledgesUnknownAndDuplicateEvents(t *testing.T) {
	srv := newTestServer(t)
	user := srv.createUser(t, "payer", 0, false)
	signed := map[string]string{"Stripe-Signature": paymenttest.ValidSignature}

	unknown := paymenttest.EncodeEvent(payment.Event{ID: "evt_0", Type: "invoice.created", Kind: payment.EventUnknown})
	rec, env := srv.do(t, http.MethodPost, "/api/payments/webhook", unknown, signed)
	if rec.Code != http.StatusOK || !env.Success || !strings.Contains(string(env.Data), `"received":true`) {
		t.Fatalf("expected acknowledged unknown event, got %d %s", rec.Code, rec.Body.String())
	}

	body := paymenttest.EncodeEvent(checkoutEvent("evt_1", user))
	for i := 0; i < 2; i++ {
		rec, _ = srv.do(t, http.MethodPost, "/api/payments/webhook", body, signed)
		if rec.Code != http.StatusOK {
			t.Fatalf("delivery %d: expected 200, got %d", i+1, rec.Code)
		}
	}
	if n := countRows(t, srv.db, &models.Subscription{}); n != 1 {
		t.Fatalf("expected one subscription after redelivery, got %d", n)
	}
	var stored models.User
	if err := srv.db.First(&stored, user.ID).Error; err != nil {
		t.Fatalf("load user: %v", err)
	}
	if !stored.IsPremium {
		t.Fatalf("expected premium after checkout")
	}
}

func TestWebhook_ProcessingFailureStillAcknowledged(t *testing.T) {
	srv := newTestServer(t)
	user := srv.createUser(t, "payer", 0, false)
	srv.processor.Err = errors.New("processor down")

	body := paymenttest.EncodeEvent(checkoutEvent("evt_2", user))
	rec, _ := srv.do(t, http.MethodPost, "/api/payments/webhook", body, map[string]string{"Stripe-Signature": paymenttest.ValidSignature})
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200 for a verified delivery, got %d", rec.Code)
	}
}

func TestWebhook_UndecodableEventJournaledAsFailed(t *testing.T) {
	srv := newTestServer(t)
	user := srv.createUser(t, "payer", 0, false)
	signed := map[string]string{"Stripe-Signature": paymenttest.ValidSignature}

	malformed := []byte(`{"id":"evt_bad","type":"checkout.session.completed","kind":"checkout_completed","checkout":5}`)
	rec, env := srv.do(t, http.MethodPost, "/api/payments/webhook", malformed, signed)
	if rec.Code != http.StatusOK || !env.Success {
		t.Fatalf("expected verified but undecodable delivery to be acknowledged, got %d %s", rec.Code, rec.Body.String())
	}
	var journaled models.WebhookEvent
	if err := srv.db.Where("event_id = ?", "evt_bad").Take(&journaled).Error; err != nil {
		t.Fatalf("load journal row: %v", err)
	}
	if journaled.Status != models.WebhookStatusFailed || journaled.Error == "" {
		t.Fatalf("expected failed journal row with error, got %q %q", journaled.Status, journaled.Error)
	}
	if journaled.Type != "checkout.session.completed" {
		t.Fatalf("expected event type to be journaled, got %q", journaled.Type)
	}

	body := paymenttest.EncodeEvent(checkoutEvent("evt_bad", user))
	if rec, _ = srv.do(t, http.MethodPost, "/api/payments/webhook", body, signed); rec.Code != http.StatusOK {
		t.Fatalf("expected redelivery to be acknowledged, got %d", rec.Code)
	}
	var stored models.User
	if err := srv.db.First(&stored, user.ID).Error; err != nil {
		t.Fatalf("load user: %v", err)
	}
	if !stored.IsPremium {
		t.Fatalf("expected a redelivered event to be applied after a decode failure")
	}
}

func TestWebhook_OversizedBodyRejected(t *testing.T) {
	srv := newTestServer(t)
	body := bytes.Repeat([]byte("a"), 1<<20+1)

	rec, env := srv.do(t, http.MethodPost, "/api/payments/webhook", body, map[string]string{"Stripe-Signature": paymenttest.ValidSignature})
	if rec.Code != http.StatusRequestEntityTooLarge || env.Error != "Webhook body too large" {
		t.Fatalf("expected 413 body too large, got %d %q", rec.Code, env.Error)
	}
	if n := countRows(t, srv.db, &models.WebhookEvent{}); n != 0 {
		t.Fatalf("expected no journaled events, got %d", n)
	}
}

func TestLeaderboard_CachedFlag(t *testing.T) {
	srv := newTestServer(t)
	srv.createUser(t, "alice", 50, false)
	srv.createUser(t, "bob", 30, false)

	rec, env := srv.do(t, http.MethodGet, "/api/leaderboard/global", nil, nil)
	if rec.Code != http.StatusOK || env.Cached == nil || *env.Cached {
		t.Fatalf("expected fresh board, got %d %s", rec.Code, rec.Body.String())
	}
	var entries []leaderboard.GlobalEntry
	if err := json.Unmarshal(env.Data, &entries); err != nil {
		t.Fatalf("decode entries: %v", err)
	}
	if len(entries) != 2 || entries[0].Username != "alice" || entries[0].Rank != 1 {
		t.Fatalf("unexpected board: %+v", entries)
	}

	_, env = srv.do(t, http.MethodGet, "/api/leaderboard/global", nil, nil)
	if env.Cached == nil || !*env.Cached {
		t.Fatalf("expected cached board on second read")
	}

	_, env = srv.do(t, http.MethodGet, "/api/leaderboard/weekly", nil, nil)
	if env.Cached == nil || *env.Cached {
		t.Fatalf("expected fresh weekly board")
	}
}

func TestLeaderboard_UserRank(t *testing.T) {
	srv := newTestServer(t)
	srv.createUser(t, "alice", 50, false)
	bob := srv.createUser(t, "bob", 30, false)
	srv.createUser(t, "carol", 30, false)

	rec, env := srv.do(t, http.MethodGet, fmt.Sprintf("/api/leaderboard/user/%d/rank", bob.ID), nil, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	var rank leaderboard.UserRank
	if err := json.Unmarshal(env.Data, &rank); err != nil {
		t.Fatalf("decode rank: %v", err)
	}
	if rank.GlobalRank != 2 {
		t.Fatalf("expected tied players to share rank 2, got %d", rank.GlobalRank)
	}

	for _, path := range []string{"/api/leaderboard/user/9999/rank", "/api/leaderboard/user/abc/rank"} {
		rec, env = srv.do(t, http.MethodGet, path, nil, nil)
		if rec.Code != http.StatusNotFound || env.Error != "User not found" {
			t.Fatalf("%s: expected 404 User not found, got %d %q", path, rec.Code, env.Error)
		}
	}
}

func TestLeaderboard_RefreshRequiresAdmin(t *testing.T) {
	srv := newTestServer(t)
	player := srv.createUser(t, "player", 0, false)
	admin := srv.createUser(t, "admin", 0, true)

	rec, _ := srv.do(t, http.MethodPost, "/api/leaderboard/refresh", nil, nil)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", rec.Code)
	}
	rec, env := srv.do(t, http.MethodPost, "/api/leaderboard/refresh", nil, bearer(t, player))
	if rec.Code != http.StatusForbidden || env.Error != "Admin access required" {
		t.Fatalf("expected 403, got %d %q", rec.Code, env.Error)
	}
	rec, env = srv.do(t, http.MethodPost, "/api/leaderboard/refresh", nil, bearer(t, admin))
	if rec.Code != http.StatusOK || env.Message != "Leaderboard cache refreshed" {
		t.Fatalf("expected refresh, got %d %s", rec.Code, rec.Body.String())
	}
}

func TestAuth_SignupLoginAndMe(t *testing.T) {
	srv := newTestServer(t)
	signup := map[string]string{"email": "new@example.com", "username": "newbie", "password": "hunter22"}

	rec, env := srv.do(t, http.MethodPost, "/api/auth/signup", signup, nil)
	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d %s", rec.Code, rec.Body.String())
	}
	rec, env = srv.do(t, http.MethodPost, "/api/auth/signup", signup, nil)
	if rec.Code != http.StatusConflict {
		t.Fatalf("expected 409 on duplicate signup, got %d", rec.Code)
	}
	rec, _ = srv.do(t, http.MethodPost, "/api/auth/signup", map[string]string{"email": "bad", "username": "x", "password": "1"}, nil)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 on invalid signup, got %d", rec.Code)
	}

	rec, env = srv.do(t, http.MethodPost, "/api/auth/login", map[string]string{"email": "new@example.com", "password": "wrong-password"}, nil)
	if rec.Code != http.StatusUnauthorized || env.Error != "Invalid email or password" {
		t.Fatalf("expected 401 on wrong password, got %d %q", rec.Code, env.Error)
	}
	rec, env = srv.do(t, http.MethodPost, "/api/auth/login", map[string]string{"email": "new@example.com", "password": "hunter22"}, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200 on login, got %d", rec.Code)
	}
	var session struct {
		Token string `json:"token"`
	}
	if err := json.Unmarshal(env.Data, &session); err != nil || session.Token == "" {
		t.Fatalf("expected token, got %s (%v)", env.Data, err)
	}

	rec, env = srv.do(t, http.MethodGet, "/api/me", nil, map[string]string{"Authorization": "Bearer " + session.Token})
	if rec.Code != http.StatusOK || !strings.Contains(string(env.Data), `"newbie"`) {
		t.Fatalf("expected profile, got %d %s", rec.Code, rec.Body.String())
	}
	if strings.Contains(rec.Body.String(), "password") {
		t.Fatalf("profile must not expose the password hash")
	}

	rec, env = srv.do(t, http.MethodGet, "/api/me", nil, nil)
	if rec.Code != http.StatusUnauthorized || env.Error != "No token provided" {
		t.Fatalf("expected 401 without token, got %d %q", rec.Code, env.Error)
	}
	rec, env = srv.do(t, http.MethodGet, "/api/me", nil, map[string]string{"Authorization": "Bearer garbage"})
	if rec.Code != http.StatusUnauthorized || env.Error != "Invalid token" {
		t.Fatalf("expected 401 on bad token, got %d %q", rec.Code, env.Error)
	}
}

func TestPayments_ActorChecks(t *testing.T) {
	srv := newTestServer(t)
	alice := srv.createUser(t, "alice", 0, false)
	bob := srv.createUser(t, "bob", 0, false)
	admin := srv.createUser(t, "admin", 0, true)

	rec, env := srv.do(t, http.MethodPost, "/api/payments/create-checkout-session",
		map[string]any{"userId": bob.ID, "priceId": "price_monthly"}, bearer(t, alice))
	if rec.Code != http.StatusForbidden || env.Error != "Access denied" {
		t.Fatalf("expected 403 acting for another user, got %d %q", rec.Code, env.Error)
	}

	rec, env = srv.do(t, http.MethodPost, "/api/payments/create-checkout-session",
		map[string]any{"userId": strconv.FormatUint(alice.ID, 10)}, bearer(t, alice))
	if rec.Code != http.StatusBadRequest || env.Error != "User ID and Price ID are required" {
		t.Fatalf("expected 400 without price, got %d %q", rec.Code, env.Error)
	}

	rec, env = srv.do(t, http.MethodPost, "/api/payments/create-checkout-session",
		map[string]any{"userId": strconv.FormatUint(alice.ID, 10), "priceId": "price_monthly"}, bearer(t, alice))
	if rec.Code != http.StatusOK || !strings.Contains(string(env.Data), `"sessionId":"cs_test_1"`) {
		t.Fatalf("expected checkout session, got %d %s", rec.Code, rec.Body.String())
	}

	rec, env = srv.do(t, http.MethodPost, "/api/payments/create-checkout-session",
		map[string]any{"userId": bob.ID, "priceId": "price_lifetime"}, bearer(t, admin))
	if rec.Code != http.StatusBadRequest || env.Error != "Unknown price ID" {
		t.Fatalf("expected 400 unknown price, got %d %q", rec.Code, env.Error)
	}

	rec, env = srv.do(t, http.MethodPost, "/api/payments/cancel-subscription", map[string]any{"userId": alice.ID}, bearer(t, alice))
	if rec.Code != http.StatusNotFound || env.Error != "No active subscription found" {
		t.Fatalf("expected 404 without subscription, got %d %q", rec.Code, env.Error)
	}

	rec, _ = srv.do(t, http.MethodGet, fmt.Sprintf("/api/payments/subscription/%d", bob.ID), nil, bearer(t, alice))
	if rec.Code != http.StatusForbidden {
		t.Fatalf("expected 403 reading another user's subscription, got %d", rec.Code)
	}
	rec, _ = srv.do(t, http.MethodGet, fmt.Sprintf("/api/payments/subscription/%d", bob.ID), nil, bearer(t, admin))
	if rec.Code != http.StatusOK {
		t.Fatalf("expected admin to read any subscription, got %d", rec.Code)
	}
}

func TestPayments_CancelAfterCheckout(t *testing.T) {
	srv := newTestServer(t)
	user := srv.createUser(t, "payer", 0, false)
	body := paymenttest.EncodeEvent(checkoutEvent("evt_1", user))
	if rec, _ := srv.do(t, http.MethodPost, "/api/payments/webhook", body, map[string]string{"Stripe-Signature": paymenttest.ValidSignature}); rec.Code != http.StatusOK {
		t.Fatalf("webhook: %d", rec.Code)
	}

	rec, env := srv.do(t, http.MethodPost, "/api/payments/cancel-subscription", map[string]any{"userId": user.ID}, bearer(t, user))
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d %s", rec.Code, rec.Body.String())
	}
	if env.Message != "Subscription will be canceled at the end of the current billing period" {
		t.Fatalf("unexpected message %q", env.Message)
	}
	if !strings.Contains(string(env.Data), `"cancelAtPeriodEnd":true`) {
		t.Fatalf("expected cancelAtPeriodEnd, got %s", env.Data)
	}
	if len(srv.processor.Canceled) != 1 || srv.processor.Canceled[0] != "sub_123" {
		t.Fatalf("expected processor cancel call, got %v", srv.processor.Canceled)
	}
}

func TestChallenges_AttemptFlow(t *testing.T) {
	srv := newTestServer(t)
	player := srv.createUser(t, "player", 0, false)
	challenge := srv.createChallenge(t, "Capitals", "2026-03-14", false)
	premium := srv.createChallenge(t, "Deep Cuts", "2026-03-15", true)
	auth := bearer(t, player)

	rec, _ := srv.do(t, http.MethodGet, fmt.Sprintf("/api/challenges/%d", challenge.ID), nil, auth)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected challenge, got %d", rec.Code)
	}
	if strings.Contains(rec.Body.String(), "is_correct") {
		t.Fatalf("challenge view must not leak correctness: %s", rec.Body.String())
	}
	rec, env := srv.do(t, http.MethodGet, fmt.Sprintf("/api/challenges/%d", premium.ID), nil, auth)
	if rec.Code != http.StatusForbidden || env.Error != "Premium subscription required" {
		t.Fatalf("expected 403 on premium, got %d %q", rec.Code, env.Error)
	}
	rec, _ = srv.do(t, http.MethodGet, "/api/challenges/9999", nil, auth)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", rec.Code)
	}

	rec, env = srv.do(t, http.MethodPost, fmt.Sprintf("/api/challenges/%d/attempts", challenge.ID), nil, auth)
	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d %s", rec.Code, rec.Body.String())
	}
	var started struct {
		Attempt play.View `json:"attempt"`
	}
	if err := json.Unmarshal(env.Data, &started); err != nil {
		t.Fatalf("decode attempt: %v", err)
	}
	if started.Attempt.State != play.StateInProgress || started.Attempt.Question == nil {
		t.Fatalf("unexpected attempt: %+v", started.Attempt)
	}
	attemptPath := "/api/attempts/" + started.Attempt.ID

	other := srv.createUser(t, "other", 0, false)
	rec, _ = srv.do(t, http.MethodGet, attemptPath, nil, bearer(t, other))
	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404 for another player's attempt, got %d", rec.Code)
	}

	rec, env = srv.do(t, http.MethodPost, attemptPath+"/answers", map[string]uint64{
		"question_id": challenge.Questions[1].ID, "answer_id": challenge.Questions[1].Answers[0].ID,
	}, auth)
	if rec.Code != http.StatusBadRequest || env.Error != "Question is not the current question" {
		t.Fatalf("expected 400 out-of-order answer, got %d %q", rec.Code, env.Error)
	}

	var final struct {
		Attempt  play.View      `json:"attempt"`
		Feedback *play.Feedback `json:"feedback"`
		Progress *play.Progress `json:"progress"`
	}
	for _, q := range challenge.Questions {
		rec, env = srv.do(t, http.MethodPost, attemptPath+"/answers", map[string]uint64{
			"question_id": q.ID, "answer_id": q.Answers[0].ID,
		}, auth)
		if rec.Code != http.StatusOK {
			t.Fatalf("answer %d: expected 200, got %d %s", q.ID, rec.Code, rec.Body.String())
		}
		if err := json.Unmarshal(env.Data, &final); err != nil {
			t.Fatalf("decode answer: %v", err)
		}
	}
	if final.Attempt.State != play.StateCompleted || final.Feedback == nil || !final.Feedback.Completed {
		t.Fatalf("expected completed attempt, got %+v", final.Attempt)
	}
	if final.Progress == nil || final.Progress.TotalPoints != 30 || final.Progress.GamesPlayed != 1 {
		t.Fatalf("unexpected progress: %+v", final.Progress)
	}

	rec, env = srv.do(t, http.MethodGet, "/api/me/history", nil, auth)
	if rec.Code != http.StatusOK || !strings.Contains(string(env.Data), `"Capitals"`) {
		t.Fatalf("expected the play in history, got %d %s", rec.Code, rec.Body.String())
	}

	rec, _ = srv.do(t, http.MethodDelete, attemptPath, nil, auth)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected abandon of a finished attempt to drop it, got %d", rec.Code)
	}
	rec, _ = srv.do(t, http.MethodGet, attemptPath, nil, auth)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404 after abandon, got %d", rec.Code)
	}
}

func TestChallenges_Daily(t *testing.T) {
	srv := newTestServer(t)
	rec, env := srv.do(t, http.MethodGet, "/api/challenges/daily", nil, nil)
	if rec.Code != http.StatusNotFound || env.Error != "No challenge available" {
		t.Fatalf("expected 404 without challenges, got %d %q", rec.Code, env.Error)
	}

	sample := srv.createChallenge(t, "Sample Capitals", "2099-01-01", false)
	rec, env = srv.do(t, http.MethodGet, "/api/challenges/daily", nil, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	var daily struct {
		ID            uint64 `json:"id"`
		QuestionCount int    `json:"question_count"`
		Locked        bool   `json:"locked"`
	}
	if err := json.Unmarshal(env.Data, &daily); err != nil {
		t.Fatalf("decode daily: %v", err)
	}
	if daily.ID != sample.ID || daily.QuestionCount != 2 || daily.Locked {
		t.Fatalf("unexpected daily: %+v", daily)
	}

	rec, _ = srv.do(t, http.MethodGet, "/api/challenges/daily", nil, map[string]string{"Authorization": "Bearer garbage"})
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 for an invalid optional token, got %d", rec.Code)
	}
}

func TestHealthz(t *testing.T) {
	srv := newTestServer(t)
	rec, _ := srv.do(t, http.MethodGet, "/healthz", nil, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected healthy, got %d", rec.Code)
	}
}
