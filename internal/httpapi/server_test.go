package httpapi_test

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"

	"github.com/creativerezz/cofk-lunch-card-app/internal/cafeteria/service"
	"github.com/creativerezz/cofk-lunch-card-app/internal/cafeteria/store/memory"
	"github.com/creativerezz/cofk-lunch-card-app/internal/cafeteria/types"
	"github.com/creativerezz/cofk-lunch-card-app/internal/httpapi"
	"github.com/creativerezz/cofk-lunch-card-app/internal/reader"
	"github.com/creativerezz/cofk-lunch-card-app/internal/reader/readertest"
)

type testEnv struct {
	ledger  *memory.LedgerStore
	menu    *memory.MenuStore
	student *memory.StudentStore
	offline *memory.OfflineStore
	ops     *memory.OperatorStore
	device  *readertest.Device
	ts      *httptest.Server
}

// newTestServer wires up the full dependency graph using in-memory stores, a
// scripted reader with a card presented, and an httptest.Server in front.
func newTestServer(t *testing.T) *testEnv {
	t.Helper()

	log := logrus.New()
	log.SetOutput(io.Discard)

	e := &testEnv{
		ledger:  memory.NewLedgerStore(),
		menu:    memory.NewMenuStore(),
		student: memory.NewStudentStore(),
		offline: memory.NewOfflineStore(),
		ops:     memory.NewOperatorStore(),
		device:  readertest.New("04A1B2C3"),
	}

	session := reader.NewSession(e.device, reader.WithPollInterval(time.Millisecond))
	if err := session.ConnectReader(); err != nil {
		t.Fatalf("ConnectReader: %v", err)
	}
	if _, err := session.WaitForCard(context.Background(), 50*time.Millisecond); err != nil {
		t.Fatalf("WaitForCard: %v", err)
	}

	proc := service.NewProcessor(service.Dependencies{
		Ledger:       e.ledger,
		Transactions: e.ledger,
		Menu:         e.menu,
		Students:     e.student,
		Offline:      e.offline,
		Audit:        memory.NewAuditStore(),
		Card:         session,
		Log:          log,
	})
	engine := service.NewSyncEngine(e.ledger, e.offline, log)

	srv := httpapi.NewServer(httpapi.Dependencies{
		Logger:       log,
		Addr:         ":0",
		Processor:    proc,
		Sync:         engine,
		Transactions: e.ledger,
		Students:     e.student,
		Menu:         e.menu,
		Offline:      e.offline,
		Operators:    e.ops,
		ScanTimeout:  100 * time.Millisecond,
	})

	e.ts = httptest.NewServer(srv.Handler())
	t.Cleanup(e.ts.Close)
	return e
}

func (e *testEnv) seedOperator(t *testing.T, username, password, role string) {
	t.Helper()
	op := types.Operator{Username: username, Role: role, IsActive: true}
	if err := op.SetPassword(password); err != nil {
		t.Fatalf("SetPassword: %v", err)
	}
	if _, err := e.ops.Create(context.Background(), op); err != nil {
		t.Fatalf("seed operator: %v", err)
	}
}

func (e *testEnv) seedStudent(t *testing.T, sid string) {
	t.Helper()
	if _, err := e.student.Create(context.Background(), types.Student{
		SID: sid, FirstName: "Alex", LastName: "Rivera",
		LowBalanceThreshold: decimal.RequireFromString("10.00"),
	}); err != nil {
		t.Fatalf("seed student: %v", err)
	}
}

// do issues an authenticated request and decodes the JSON response into out.
func (e *testEnv) do(t *testing.T, method, path, user, pass string, body any, out any) *http.Response {
	t.Helper()

	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encode body: %v", err)
		}
	}
	req, err := http.NewRequest(method, e.ts.URL+path, &buf)
	if err != nil {
		t.Fatalf("new request: %v", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if user != "" {
		req.SetBasicAuth(user, pass)
	}

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("%s %s: %v", method, path, err)
	}
	t.Cleanup(func() { resp.Body.Close() })

	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			t.Fatalf("decode response: %v", err)
		}
	}
	return resp
}

// ── Auth ─────────────────────────────────────────────────────────────────────

func TestAPI_RequiresCredentials(t *testing.T) {
	e := newTestServer(t)
	e.seedOperator(t, "op1", "secret", "operator")

	resp := e.do(t, http.MethodGet, "/v1/sync/pending", "", "", nil, nil)
	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("expected 401 without credentials, got %d", resp.StatusCode)
	}

	resp = e.do(t, http.MethodGet, "/v1/sync/pending", "op1", "wrong", nil, nil)
	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("expected 401 with a bad password, got %d", resp.StatusCode)
	}

	resp = e.do(t, http.MethodGet, "/v1/sync/pending", "op1", "secret", nil, nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200 with valid credentials, got %d", resp.StatusCode)
	}
}

func TestAPI_RefundRequiresAdmin(t *testing.T) {
	e := newTestServer(t)
	e.seedOperator(t, "op1", "secret", "operator")
	e.seedOperator(t, "boss", "secret", "admin")
	e.seedStudent(t, "S001")

	var reg types.Result
	resp := e.do(t, http.MethodPost, "/v1/card/register", "op1", "secret", map[string]any{
		"card_uid": "04A1B2C3", "student_sid": "S001", "initial_balance": "20.00",
	}, &reg)
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("register: expected 201, got %d", resp.StatusCode)
	}

	resp = e.do(t, http.MethodPost, "/v1/refund", "op1", "secret", map[string]any{
		"transaction_id": reg.Transaction.ID,
	}, nil)
	if resp.StatusCode != http.StatusForbidden {
		t.Fatalf("expected 403 for a non-admin refund, got %d", resp.StatusCode)
	}

	var refund types.Result
	resp = e.do(t, http.MethodPost, "/v1/refund", "boss", "secret", map[string]any{
		"transaction_id": reg.Transaction.ID,
	}, &refund)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200 for an admin refund, got %d", resp.StatusCode)
	}
	if refund.Transaction.Type != types.TxRefund {
		t.Errorf("expected a refund transaction, got %s", refund.Transaction.Type)
	}
}

// ── Card lifecycle over the wire ─────────────────────────────────────────────

func TestAPI_RegisterLoadPurchaseFlow(t *testing.T) {
	e := newTestServer(t)
	e.seedOperator(t, "op1", "secret", "operator")
	e.seedStudent(t, "S001")
	lunch, err := e.menu.Create(context.Background(), types.MenuItem{
		Name: "Lunch Special", Price: decimal.RequireFromString("4.50"), IsAvailable: true,
	})
	if err != nil {
		t.Fatalf("seed menu: %v", err)
	}

	resp := e.do(t, http.MethodPost, "/v1/card/register", "op1", "secret", map[string]any{
		"card_uid": "04A1B2C3", "student_sid": "S001", "initial_balance": "10.00",
	}, nil)
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("register: expected 201, got %d", resp.StatusCode)
	}

	var load types.Result
	resp = e.do(t, http.MethodPost, "/v1/card/load", "op1", "secret", map[string]any{
		"card_uid": "04A1B2C3", "amount": "5.00",
	}, &load)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("load: expected 200, got %d", resp.StatusCode)
	}
	if load.Transaction.BalanceAfter.StringFixed(2) != "15.00" {
		t.Errorf("expected balance 15.00 after load, got %s", load.Transaction.BalanceAfter)
	}

	var purchase types.Result
	resp = e.do(t, http.MethodPost, "/v1/purchase", "op1", "secret", map[string]any{
		"card_uid": "04A1B2C3",
		"items":    []map[string]any{{"menu_item_id": lunch.ID, "quantity": 2}},
	}, &purchase)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("purchase: expected 200, got %d", resp.StatusCode)
	}
	if purchase.Transaction.BalanceAfter.StringFixed(2) != "6.00" {
		t.Errorf("expected balance 6.00 after purchase, got %s", purchase.Transaction.BalanceAfter)
	}
	if !purchase.LowBalanceWarning {
		t.Error("expected a low balance warning at 6.00")
	}

	// The acting operator is recorded on the transaction.
	if purchase.Transaction.Actor != "op1" {
		t.Errorf("expected actor op1, got %q", purchase.Transaction.Actor)
	}
}

func TestAPI_PurchaseInsufficientBalancePayload(t *testing.T) {
	e := newTestServer(t)
	e.seedOperator(t, "op1", "secret", "operator")
	e.seedStudent(t, "S001")
	item, err := e.menu.Create(context.Background(), types.MenuItem{
		Name: "Catering Tray", Price: decimal.RequireFromString("20.00"), IsAvailable: true,
	})
	if err != nil {
		t.Fatalf("seed menu: %v", err)
	}

	e.do(t, http.MethodPost, "/v1/card/register", "op1", "secret", map[string]any{
		"card_uid": "04A1B2C3", "student_sid": "S001", "initial_balance": "5.00",
	}, nil)

	var body struct {
		Error    string          `json:"error"`
		Balance  decimal.Decimal `json:"balance"`
		Required decimal.Decimal `json:"required"`
	}
	resp := e.do(t, http.MethodPost, "/v1/purchase", "op1", "secret", map[string]any{
		"card_uid": "04A1B2C3",
		"items":    []map[string]any{{"menu_item_id": item.ID, "quantity": 1}},
	}, &body)
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", resp.StatusCode)
	}
	if body.Error != "insufficient_balance" {
		t.Errorf("expected insufficient_balance, got %q", body.Error)
	}
	if body.Balance.StringFixed(2) != "5.00" || body.Required.StringFixed(2) != "20.00" {
		t.Errorf("expected balance=5.00 required=20.00, got %s/%s", body.Balance, body.Required)
	}
}

func TestAPI_UnknownCardIs404(t *testing.T) {
	e := newTestServer(t)
	e.seedOperator(t, "op1", "secret", "operator")

	resp := e.do(t, http.MethodPost, "/v1/card/load", "op1", "secret", map[string]any{
		"card_uid": "UNKNOWN", "amount": "5.00",
	}, nil)
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("expected 404 for an unknown card, got %d", resp.StatusCode)
	}
}

// ── Menu ─────────────────────────────────────────────────────────────────────

func TestAPI_MenuListsAvailableItems(t *testing.T) {
	e := newTestServer(t)
	e.seedOperator(t, "op1", "secret", "operator")
	ctx := context.Background()

	if _, err := e.menu.Create(ctx, types.MenuItem{
		Name: "Lunch Special", Price: decimal.RequireFromString("4.50"), IsAvailable: true,
	}); err != nil {
		t.Fatalf("seed menu: %v", err)
	}
	if _, err := e.menu.Create(ctx, types.MenuItem{
		Name: "Retired Item", Price: decimal.RequireFromString("1.00"), IsAvailable: false,
	}); err != nil {
		t.Fatalf("seed menu: %v", err)
	}

	var menu struct {
		Items []types.MenuItem `json:"items"`
		Count int              `json:"count"`
	}
	resp := e.do(t, http.MethodGet, "/v1/menu", "op1", "secret", nil, &menu)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("menu: expected 200, got %d", resp.StatusCode)
	}
	if menu.Count != 1 || len(menu.Items) != 1 {
		t.Fatalf("expected 1 available item, got %d", menu.Count)
	}
	if menu.Items[0].Name != "Lunch Special" {
		t.Errorf("expected Lunch Special, got %q", menu.Items[0].Name)
	}
}

// ── Scan ─────────────────────────────────────────────────────────────────────

func TestAPI_ScanUnregisteredCard(t *testing.T) {
	e := newTestServer(t)
	e.seedOperator(t, "op1", "secret", "operator")

	var scan types.ScanResult
	resp := e.do(t, http.MethodPost, "/v1/card/scan", "op1", "secret", nil, &scan)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("scan: expected 200, got %d", resp.StatusCode)
	}
	if scan.Registered {
		t.Error("expected an unregistered scan result")
	}
	if scan.CardUID != "04A1B2C3" {
		t.Errorf("expected uid 04A1B2C3, got %s", scan.CardUID)
	}
}

// ── Sync ─────────────────────────────────────────────────────────────────────

func TestAPI_SyncPendingAndRun(t *testing.T) {
	e := newTestServer(t)
	e.seedOperator(t, "op1", "secret", "operator")
	e.seedStudent(t, "S001")
	ctx := context.Background()

	e.do(t, http.MethodPost, "/v1/card/register", "op1", "secret", map[string]any{
		"card_uid": "04A1B2C3", "student_sid": "S001",
	}, nil)

	// A queued offline operation shows up in the pending list and one sync
	// run folds it into the ledger.
	if _, err := e.offline.EnqueuePending(ctx, "04A1B2C3", types.TxLoadFunds, decimal.RequireFromString("10.00"), false); err != nil {
		t.Fatalf("EnqueuePending: %v", err)
	}

	var pendingResp struct {
		Count int `json:"count"`
	}
	resp := e.do(t, http.MethodGet, "/v1/sync/pending", "op1", "secret", nil, &pendingResp)
	if resp.StatusCode != http.StatusOK || pendingResp.Count != 1 {
		t.Fatalf("expected 1 pending, got status=%d count=%d", resp.StatusCode, pendingResp.Count)
	}

	var runResp service.SyncResult
	resp = e.do(t, http.MethodPost, "/v1/sync/run", "op1", "secret", nil, &runResp)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("sync run: expected 200, got %d", resp.StatusCode)
	}
	if runResp.Synced != 1 {
		t.Errorf("expected 1 synced, got %d", runResp.Synced)
	}

	card, err := e.ledger.GetCardByUID(ctx, "04A1B2C3")
	if err != nil {
		t.Fatalf("GetCardByUID: %v", err)
	}
	if card.Balance.StringFixed(2) != "10.00" {
		t.Errorf("expected ledger balance 10.00 after sync, got %s", card.Balance)
	}
}

// ── Reports ──────────────────────────────────────────────────────────────────

func TestAPI_DailyReportAndStudentHistory(t *testing.T) {
	e := newTestServer(t)
	e.seedOperator(t, "op1", "secret", "operator")
	e.seedStudent(t, "S001")
	lunch, err := e.menu.Create(context.Background(), types.MenuItem{
		Name: "Lunch Special", Price: decimal.RequireFromString("4.50"), IsAvailable: true,
	})
	if err != nil {
		t.Fatalf("seed menu: %v", err)
	}

	e.do(t, http.MethodPost, "/v1/card/register", "op1", "secret", map[string]any{
		"card_uid": "04A1B2C3", "student_sid": "S001", "initial_balance": "20.00",
	}, nil)
	e.do(t, http.MethodPost, "/v1/purchase", "op1", "secret", map[string]any{
		"card_uid": "04A1B2C3",
		"items":    []map[string]any{{"menu_item_id": lunch.ID, "quantity": 1}},
	}, nil)

	var report struct {
		Summary struct {
			Transactions int             `json:"transactions"`
			TotalSales   decimal.Decimal `json:"total_sales"`
		} `json:"summary"`
		PopularItems []struct {
			Name     string `json:"name"`
			Quantity int    `json:"quantity"`
		} `json:"popular_items"`
	}
	resp := e.do(t, http.MethodGet, "/v1/reports/daily", "op1", "secret", nil, &report)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("report: expected 200, got %d", resp.StatusCode)
	}
	if report.Summary.TotalSales.StringFixed(2) != "4.50" {
		t.Errorf("expected total sales 4.50, got %s", report.Summary.TotalSales)
	}
	if len(report.PopularItems) != 1 || report.PopularItems[0].Name != "Lunch Special" {
		t.Errorf("unexpected popular items: %+v", report.PopularItems)
	}

	var history struct {
		Count int `json:"count"`
	}
	resp = e.do(t, http.MethodGet, "/v1/students/S001/transactions", "op1", "secret", nil, &history)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("history: expected 200, got %d", resp.StatusCode)
	}
	if history.Count != 2 {
		t.Errorf("expected 2 transactions (load + purchase), got %d", history.Count)
	}

	resp = e.do(t, http.MethodGet, "/v1/students/S999/transactions", "op1", "secret", nil, nil)
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("expected 404 for an unknown student, got %d", resp.StatusCode)
	}
}
