package websocket

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"RestoPOS/app/cache"
	"RestoPOS/app/database"
	"RestoPOS/app/metrics"
	"RestoPOS/app/models"
	"RestoPOS/app/services"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/cors"
	"github.com/skip2/go-qrcode"
)

// IdempotencyGuard deduplicates order creation retried with the same key
type IdempotencyGuard interface {
	Claim(ctx context.Context, key string) (string, error)
	Complete(ctx context.Context, key, orderID string) error
	Release(ctx context.Context, key string) error
}

// SyncStatusSource exposes the sync bridge bookkeeping
type SyncStatusSource interface {
	GetSyncStatus() (*database.SyncStatus, error)
	RecentSyncLogs(limit int) ([]database.SyncLog, error)
}

// Dependencies are the optional collaborators of the REST API
type Dependencies struct {
	Idempotency IdempotencyGuard
	SyncStatus  SyncStatusSource
}

// RESTHandlers provides HTTP REST endpoints for POS, kitchen and waiter apps
type RESTHandlers struct {
	store     *services.Store
	server    *Server
	logger    *services.LoggerService
	publicURL string
	deps      Dependencies
}

// NewRESTHandlers creates a new REST handlers instance
func NewRESTHandlers(store *services.Store, server *Server, logger *services.LoggerService, publicURL string, deps Dependencies) *RESTHandlers {
	return &RESTHandlers{
		store:     store,
		server:    server,
		logger:    logger,
		publicURL: strings.TrimRight(publicURL, "/"),
		deps:      deps,
	}
}

// Router builds the mux router wrapped in CORS
func (h *RESTHandlers) Router(allowedOrigins []string) http.Handler {
	router := mux.NewRouter()
	router.Use(metricsMiddleware)

	router.HandleFunc("/health", h.handleHealth).Methods(http.MethodGet)
	router.Handle("/metrics", promhttp.Handler())
	if h.server != nil {
		router.HandleFunc("/ws", h.server.handleWebSocket)
	}

	api := router.PathPrefix("/api").Subrouter()

	api.HandleFunc("/orders", h.HandleGetOrders).Methods(http.MethodGet)
	api.HandleFunc("/orders", h.HandleCreateOrder).Methods(http.MethodPost)
	api.HandleFunc("/orders/{id}", h.HandleGetOrder).Methods(http.MethodGet)
	api.HandleFunc("/orders/{id}", h.HandleUpdateOrder).Methods(http.MethodPut)
	api.HandleFunc("/orders/{id}/status", h.HandleUpdateOrderStatus).Methods(http.MethodPatch, http.MethodPost)
	api.HandleFunc("/orders/{id}/items", h.HandleAppendItems).Methods(http.MethodPost)
	api.HandleFunc("/orders/{id}/items/{itemId}/refund", h.HandleRefundItem).Methods(http.MethodPost)
	api.HandleFunc("/orders/{id}/restore-stock", h.HandleRestoreStock).Methods(http.MethodPost)

	api.HandleFunc("/tables", h.HandleGetTables).Methods(http.MethodGet)
	api.HandleFunc("/tables", h.HandleAddTable).Methods(http.MethodPost)
	api.HandleFunc("/tables/move", h.HandleMoveOrder).Methods(http.MethodPost)
	api.HandleFunc("/tables/by-token/{token}", h.HandleTableByToken).Methods(http.MethodGet)
	api.HandleFunc("/tables/{id}", h.HandleGetTable).Methods(http.MethodGet)
	api.HandleFunc("/tables/{id}", h.HandleUpdateTable).Methods(http.MethodPut)
	api.HandleFunc("/tables/{id}", h.HandleDeleteTable).Methods(http.MethodDelete)
	api.HandleFunc("/tables/{id}/token", h.HandleRotateToken).Methods(http.MethodPost)
	api.HandleFunc("/tables/{id}/qr.png", h.HandleTableQR).Methods(http.MethodGet)

	api.HandleFunc("/ingredients", h.HandleGetIngredients).Methods(http.MethodGet)
	api.HandleFunc("/ingredients", h.HandleAddIngredient).Methods(http.MethodPost)
	api.HandleFunc("/ingredients/low-stock", h.HandleLowStock).Methods(http.MethodGet)
	api.HandleFunc("/ingredients/{id}", h.HandleGetIngredient).Methods(http.MethodGet)
	api.HandleFunc("/ingredients/{id}", h.HandleUpdateIngredient).Methods(http.MethodPut)
	api.HandleFunc("/ingredients/{id}", h.HandleDeleteIngredient).Methods(http.MethodDelete)
	api.HandleFunc("/ingredients/{id}/adjust", h.HandleAdjustStock).Methods(http.MethodPost)
	api.HandleFunc("/ingredients/{id}/movements", h.HandleMovements).Methods(http.MethodGet)

	api.HandleFunc("/products", h.HandleGetProducts).Methods(http.MethodGet)
	api.HandleFunc("/products/{id}/yield", h.HandleProductYield).Methods(http.MethodGet)
	api.HandleFunc("/availability", h.HandleAvailability).Methods(http.MethodGet)

	api.HandleFunc("/shifts", h.HandleGetShifts).Methods(http.MethodGet)
	api.HandleFunc("/shifts/open", h.HandleGetOpenShift).Methods(http.MethodGet)
	api.HandleFunc("/shifts/open", h.HandleStartShift).Methods(http.MethodPost)
	api.HandleFunc("/shifts/close", h.HandleCloseShift).Methods(http.MethodPost)
	api.HandleFunc("/shifts/cash", h.HandleCashTransaction).Methods(http.MethodPost)

	api.HandleFunc("/auth/pin", h.HandlePINLogin).Methods(http.MethodPost)
	api.HandleFunc("/sync/status", h.HandleSyncStatus).Methods(http.MethodGet)

	c := cors.New(cors.Options{
		AllowedOrigins:   allowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"*"},
		AllowCredentials: true,
	})
	return c.Handler(router)
}

// Orders

// HandleGetOrders lists orders. ?open=true limits to open orders, ?table= to one table.
func (h *RESTHandlers) HandleGetOrders(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()
	var orders []models.Order
	switch {
	case query.Get("table") != "":
		orders = h.store.GetOrdersByTable(query.Get("table"))
	case query.Get("open") == "true":
		orders = h.store.OpenOrders()
	default:
		orders = h.store.GetOrders()
	}
	if orders == nil {
		orders = []models.Order{}
	}
	writeJSON(w, http.StatusOK, orders)
}

// HandleGetOrder returns one order
func (h *RESTHandlers) HandleGetOrder(w http.ResponseWriter, r *http.Request) {
	order, err := h.store.GetOrder(mux.Vars(r)["id"])
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, order)
}

type orderResponse struct {
	Order  *models.Order   `json:"order,omitempty"`
	Result services.Result `json:"result"`
}

// HandleCreateOrder creates an order. With an Idempotency-Key header and a
// configured guard, a retried request returns the order made the first time.
func (h *RESTHandlers) HandleCreateOrder(w http.ResponseWriter, r *http.Request) {
	var order models.Order
	if err := decodeJSON(r, &order); err != nil {
		writeMessage(w, http.StatusBadRequest, err.Error())
		return
	}

	key := r.Header.Get("Idempotency-Key")
	if key != "" && h.deps.Idempotency != nil {
		existingID, err := h.deps.Idempotency.Claim(r.Context(), key)
		switch {
		case errors.Is(err, cache.ErrInFlight):
			writeMessage(w, http.StatusConflict, err.Error())
			return
		case err != nil:
			// the cache is an optimization, never a hard dependency
			h.logWarning("Idempotency check failed", err.Error())
			key = ""
		case existingID != "":
			existing, getErr := h.store.GetOrder(existingID)
			if getErr != nil {
				h.writeError(w, getErr)
				return
			}
			writeJSON(w, http.StatusOK, orderResponse{Order: existing, Result: services.Result{Outcome: services.OutcomeSkipped, Message: "duplicate request"}})
			return
		}
	} else {
		key = ""
	}

	created, result, err := h.store.CreateOrder(r.Context(), order)
	if err != nil {
		if key != "" {
			h.deps.Idempotency.Release(r.Context(), key)
		}
		h.writeError(w, err)
		return
	}
	if key != "" {
		if err := h.deps.Idempotency.Complete(r.Context(), key, created.ID); err != nil {
			h.logWarning("Failed to store idempotency key", err.Error())
		}
	}
	writeJSON(w, http.StatusCreated, orderResponse{Order: created, Result: result})
}

// HandleUpdateOrder replaces the editable content of an order
func (h *RESTHandlers) HandleUpdateOrder(w http.ResponseWriter, r *http.Request) {
	var order models.Order
	if err := decodeJSON(r, &order); err != nil {
		writeMessage(w, http.StatusBadRequest, err.Error())
		return
	}
	order.ID = mux.Vars(r)["id"]

	updated, result, err := h.store.UpdateOrder(r.Context(), order)
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeResult(w, orderResponse{Order: updated, Result: result}, result)
}

// HandleUpdateOrderStatus transitions an order
func (h *RESTHandlers) HandleUpdateOrderStatus(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Status models.OrderStatus `json:"status"`
	}
	if err := decodeJSON(r, &req); err != nil {
		writeMessage(w, http.StatusBadRequest, err.Error())
		return
	}

	result, err := h.store.UpdateOrderStatus(r.Context(), mux.Vars(r)["id"], req.Status)
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeResult(w, result, result)
}

// HandleAppendItems adds items to an open order
func (h *RESTHandlers) HandleAppendItems(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Items []models.OrderItem `json:"items"`
	}
	if err := decodeJSON(r, &req); err != nil {
		writeMessage(w, http.StatusBadRequest, err.Error())
		return
	}

	order, result, err := h.store.AppendItems(r.Context(), mux.Vars(r)["id"], req.Items)
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeResult(w, orderResponse{Order: order, Result: result}, result)
}

// HandleRefundItem refunds units of one line
func (h *RESTHandlers) HandleRefundItem(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Quantity int `json:"quantity"`
	}
	if err := decodeJSON(r, &req); err != nil {
		writeMessage(w, http.StatusBadRequest, err.Error())
		return
	}

	vars := mux.Vars(r)
	result, err := h.store.RefundOrderItem(r.Context(), vars["id"], vars["itemId"], req.Quantity)
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeResult(w, result, result)
}

// HandleRestoreStock puts an order's recipe consumption back
func (h *RESTHandlers) HandleRestoreStock(w http.ResponseWriter, r *http.Request) {
	result, err := h.store.RestoreStockForOrder(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeResult(w, result, result)
}

// Tables

// HandleGetTables lists tables
func (h *RESTHandlers) HandleGetTables(w http.ResponseWriter, r *http.Request) {
	tables := h.store.GetTables()
	if tables == nil {
		tables = []models.Table{}
	}
	writeJSON(w, http.StatusOK, tables)
}

// HandleGetTable returns one table
func (h *RESTHandlers) HandleGetTable(w http.ResponseWriter, r *http.Request) {
	table, err := h.store.GetTable(mux.Vars(r)["id"])
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, table)
}

// HandleTableByToken resolves a customer QR token
func (h *RESTHandlers) HandleTableByToken(w http.ResponseWriter, r *http.Request) {
	table, err := h.store.TableByToken(mux.Vars(r)["token"])
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, table)
}

// HandleAddTable registers a table
func (h *RESTHandlers) HandleAddTable(w http.ResponseWriter, r *http.Request) {
	var table models.Table
	if err := decodeJSON(r, &table); err != nil {
		writeMessage(w, http.StatusBadRequest, err.Error())
		return
	}
	created, err := h.store.AddTable(r.Context(), table)
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, created)
}

// HandleUpdateTable updates a table's descriptive fields
func (h *RESTHandlers) HandleUpdateTable(w http.ResponseWriter, r *http.Request) {
	var table models.Table
	if err := decodeJSON(r, &table); err != nil {
		writeMessage(w, http.StatusBadRequest, err.Error())
		return
	}
	table.ID = mux.Vars(r)["id"]

	result, err := h.store.UpdateTable(r.Context(), table)
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeResult(w, result, result)
}

// HandleDeleteTable deletes a table
func (h *RESTHandlers) HandleDeleteTable(w http.ResponseWriter, r *http.Request) {
	result, err := h.store.DeleteTable(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeResult(w, result, result)
}

// HandleMoveOrder moves the open order of one table to another
func (h *RESTHandlers) HandleMoveOrder(w http.ResponseWriter, r *http.Request) {
	var req struct {
		From string `json:"fromTableId"`
		To   string `json:"toTableId"`
	}
	if err := decodeJSON(r, &req); err != nil {
		writeMessage(w, http.StatusBadRequest, err.Error())
		return
	}

	order, err := h.store.MoveOrder(r.Context(), req.From, req.To)
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, order)
}

// HandleRotateToken issues a new QR token
func (h *RESTHandlers) HandleRotateToken(w http.ResponseWriter, r *http.Request) {
	token, err := h.store.RotateTableToken(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"token": token})
}

// HandleTableQR renders the customer ordering link of a table as a PNG
func (h *RESTHandlers) HandleTableQR(w http.ResponseWriter, r *http.Request) {
	table, err := h.store.GetTable(mux.Vars(r)["id"])
	if err != nil {
		h.writeError(w, err)
		return
	}

	size := 256
	if v, convErr := strconv.Atoi(r.URL.Query().Get("size")); convErr == nil && v >= 64 && v <= 1024 {
		size = v
	}

	png, err := qrcode.Encode(h.orderingURL(r, table.QRToken), qrcode.Medium, size)
	if err != nil {
		h.writeError(w, fmt.Errorf("failed to render QR: %w", err))
		return
	}

	w.Header().Set("Content-Type", "image/png")
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(http.StatusOK)
	w.Write(png)
}

func (h *RESTHandlers) orderingURL(r *http.Request, token string) string {
	base := h.publicURL
	if base == "" {
		base = "http://" + r.Host
	}
	return fmt.Sprintf("%s/order?table=%s", base, token)
}

// Ingredients

// HandleGetIngredients lists ingredients
func (h *RESTHandlers) HandleGetIngredients(w http.ResponseWriter, r *http.Request) {
	ingredients := h.store.GetIngredients()
	if ingredients == nil {
		ingredients = []models.Ingredient{}
	}
	writeJSON(w, http.StatusOK, ingredients)
}

// HandleGetIngredient returns one ingredient
func (h *RESTHandlers) HandleGetIngredient(w http.ResponseWriter, r *http.Request) {
	ingredient, err := h.store.GetIngredient(mux.Vars(r)["id"])
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, ingredient)
}

// HandleAddIngredient creates an ingredient
func (h *RESTHandlers) HandleAddIngredient(w http.ResponseWriter, r *http.Request) {
	var ingredient models.Ingredient
	if err := decodeJSON(r, &ingredient); err != nil {
		writeMessage(w, http.StatusBadRequest, err.Error())
		return
	}
	created, err := h.store.AddIngredient(r.Context(), ingredient)
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, created)
}

// HandleUpdateIngredient replaces an ingredient
func (h *RESTHandlers) HandleUpdateIngredient(w http.ResponseWriter, r *http.Request) {
	var ingredient models.Ingredient
	if err := decodeJSON(r, &ingredient); err != nil {
		writeMessage(w, http.StatusBadRequest, err.Error())
		return
	}
	ingredient.ID = mux.Vars(r)["id"]

	result, err := h.store.UpdateIngredient(r.Context(), ingredient)
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeResult(w, result, result)
}

// HandleDeleteIngredient deletes an ingredient
func (h *RESTHandlers) HandleDeleteIngredient(w http.ResponseWriter, r *http.Request) {
	result, err := h.store.DeleteIngredient(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeResult(w, result, result)
}

// HandleAdjustStock applies a manual stock delta
func (h *RESTHandlers) HandleAdjustStock(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Delta  float64 `json:"delta"`
		Reason string  `json:"reason"`
	}
	if err := decodeJSON(r, &req); err != nil {
		writeMessage(w, http.StatusBadRequest, err.Error())
		return
	}

	result, err := h.store.AdjustIngredientStock(r.Context(), mux.Vars(r)["id"], req.Delta, req.Reason)
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeResult(w, result, result)
}

// HandleMovements lists the stock movements of an ingredient
func (h *RESTHandlers) HandleMovements(w http.ResponseWriter, r *http.Request) {
	movements := h.store.IngredientMovements(mux.Vars(r)["id"])
	if movements == nil {
		movements = []models.IngredientMovement{}
	}
	writeJSON(w, http.StatusOK, movements)
}

// HandleLowStock lists ingredients at or under their minimum
func (h *RESTHandlers) HandleLowStock(w http.ResponseWriter, r *http.Request) {
	ingredients := h.store.LowStockIngredients()
	if ingredients == nil {
		ingredients = []models.Ingredient{}
	}
	writeJSON(w, http.StatusOK, ingredients)
}

// Products

// HandleGetProducts lists products
func (h *RESTHandlers) HandleGetProducts(w http.ResponseWriter, r *http.Request) {
	var products []models.Product
	if category := r.URL.Query().Get("category"); category != "" {
		products = h.store.GetProductsByCategory(category)
	} else {
		products = h.store.GetProducts()
	}
	if products == nil {
		products = []models.Product{}
	}
	writeJSON(w, http.StatusOK, products)
}

// HandleProductYield returns how many units of a product can be made
func (h *RESTHandlers) HandleProductYield(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	yield, err := h.store.CalculateMaxYield(id)
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, services.ProductYield{
		ProductID: id,
		MaxYield:  yield,
		Unlimited: yield == services.UnlimitedYield,
	})
}

// HandleAvailability returns the yield of every product
func (h *RESTHandlers) HandleAvailability(w http.ResponseWriter, r *http.Request) {
	yields := h.store.ProductAvailability()
	if yields == nil {
		yields = []services.ProductYield{}
	}
	writeJSON(w, http.StatusOK, yields)
}

// Shifts

// HandleGetShifts lists shifts, newest first
func (h *RESTHandlers) HandleGetShifts(w http.ResponseWriter, r *http.Request) {
	shifts := h.store.GetShifts()
	if shifts == nil {
		shifts = []models.Shift{}
	}
	writeJSON(w, http.StatusOK, shifts)
}

// HandleGetOpenShift returns the open shift or 404
func (h *RESTHandlers) HandleGetOpenShift(w http.ResponseWriter, r *http.Request) {
	shift := h.store.GetOpenShift()
	if shift == nil {
		writeMessage(w, http.StatusNotFound, services.ErrNoOpenShift.Error())
		return
	}
	writeJSON(w, http.StatusOK, shift)
}

// HandleStartShift opens a shift
func (h *RESTHandlers) HandleStartShift(w http.ResponseWriter, r *http.Request) {
	var req struct {
		StaffID      string  `json:"staffId"`
		StaffName    string  `json:"staffName"`
		StartingCash float64 `json:"startingCash"`
	}
	if err := decodeJSON(r, &req); err != nil {
		writeMessage(w, http.StatusBadRequest, err.Error())
		return
	}

	shift, err := h.store.StartShift(r.Context(), req.StaffID, req.StaffName, req.StartingCash)
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, shift)
}

// HandleCloseShift closes the open shift
func (h *RESTHandlers) HandleCloseShift(w http.ResponseWriter, r *http.Request) {
	var req struct {
		EndingCash float64 `json:"endingCash"`
		Notes      string  `json:"notes"`
	}
	if err := decodeJSON(r, &req); err != nil {
		writeMessage(w, http.StatusBadRequest, err.Error())
		return
	}

	shift, err := h.store.CloseShift(r.Context(), req.EndingCash, req.Notes)
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, shift)
}

// HandleCashTransaction records a manual cash movement
func (h *RESTHandlers) HandleCashTransaction(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Amount float64 `json:"amount"`
		Reason string  `json:"reason"`
	}
	if err := decodeJSON(r, &req); err != nil {
		writeMessage(w, http.StatusBadRequest, err.Error())
		return
	}

	result, err := h.store.RecordCashTransaction(r.Context(), req.Amount, req.Reason)
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeResult(w, result, result)
}

// HandlePINLogin resolves a staff member by PIN
func (h *RESTHandlers) HandlePINLogin(w http.ResponseWriter, r *http.Request) {
	var req struct {
		PIN string `json:"pin"`
	}
	if err := decodeJSON(r, &req); err != nil {
		writeMessage(w, http.StatusBadRequest, err.Error())
		return
	}

	staff, err := h.store.AuthenticatePIN(req.PIN)
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, staff)
}

// HandleSyncStatus reports the sync bridge state
func (h *RESTHandlers) HandleSyncStatus(w http.ResponseWriter, r *http.Request) {
	pending, _ := h.store.PendingOrders()
	response := map[string]interface{}{
		"enabled":       h.deps.SyncStatus != nil,
		"pendingOrders": len(pending),
	}

	if h.deps.SyncStatus != nil {
		status, err := h.deps.SyncStatus.GetSyncStatus()
		if err != nil {
			h.writeError(w, err)
			return
		}
		logs, err := h.deps.SyncStatus.RecentSyncLogs(20)
		if err != nil {
			h.writeError(w, err)
			return
		}
		response["status"] = status
		response["log"] = logs
	}
	writeJSON(w, http.StatusOK, response)
}

// handleHealth handles health check endpoint
func (h *RESTHandlers) handleHealth(w http.ResponseWriter, r *http.Request) {
	response := map[string]interface{}{
		"status":     "healthy",
		"openOrders": len(h.store.OpenOrders()),
		"time":       time.Now().UTC(),
	}
	if h.server != nil {
		response["clients"] = h.server.ClientCounts()
	}
	writeJSON(w, http.StatusOK, response)
}

// Helpers

func decodeJSON(r *http.Request, dest interface{}) error {
	decoder := json.NewDecoder(http.MaxBytesReader(nil, r.Body, 1<<20))
	if err := decoder.Decode(dest); err != nil {
		return fmt.Errorf("invalid request body: %w", err)
	}
	return nil
}

func writeJSON(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(body)
}

func writeMessage(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}

// writeResult answers 404 for not_found results and 200 otherwise
func writeResult(w http.ResponseWriter, body interface{}, result services.Result) {
	status := http.StatusOK
	if result.Outcome == services.OutcomeNotFound {
		status = http.StatusNotFound
	}
	writeJSON(w, status, body)
}

// statusFor maps store errors to HTTP status codes
func statusFor(err error) int {
	switch {
	case errors.Is(err, services.ErrNotFound),
		errors.Is(err, services.ErrTableNotFound):
		return http.StatusNotFound
	case errors.Is(err, services.ErrTableOccupied),
		errors.Is(err, services.ErrNoSourceOrder),
		errors.Is(err, services.ErrDuplicateOrder),
		errors.Is(err, services.ErrOrderClosed),
		errors.Is(err, services.ErrInvalidTransition),
		errors.Is(err, services.ErrShiftAlreadyOpen),
		errors.Is(err, services.ErrNoOpenShift),
		errors.Is(err, services.ErrStaffExists):
		return http.StatusConflict
	case errors.Is(err, services.ErrWrongPIN):
		return http.StatusUnauthorized
	case errors.Is(err, services.ErrMissingOrderID),
		errors.Is(err, services.ErrMissingOrderNumber),
		errors.Is(err, services.ErrInvalidStatus),
		errors.Is(err, services.ErrInvalidItem),
		errors.Is(err, services.ErrSameTable),
		errors.Is(err, services.ErrMissingTableName),
		errors.Is(err, services.ErrInvalidAmount),
		errors.Is(err, services.ErrMissingStaff),
		errors.Is(err, services.ErrInvalidPIN),
		errors.Is(err, services.ErrMissingName),
		errors.Is(err, services.ErrNegativeStock):
		return http.StatusBadRequest
	}
	return http.StatusInternalServerError
}

func (h *RESTHandlers) writeError(w http.ResponseWriter, err error) {
	status := statusFor(err)
	if status == http.StatusInternalServerError && h.logger != nil {
		h.logger.LogError("REST API error", err)
	}
	writeMessage(w, status, err.Error())
}

func (h *RESTHandlers) logWarning(message string, details ...string) {
	if h.logger != nil {
		h.logger.LogWarning(message, details...)
	}
}

// statusRecorder captures the response status for metrics
type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

// Hijack keeps websocket upgrades working through the recorder
func (r *statusRecorder) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	hijacker, ok := r.ResponseWriter.(http.Hijacker)
	if !ok {
		return nil, nil, errors.New("response writer does not support hijacking")
	}
	r.status = http.StatusSwitchingProtocols
	return hijacker.Hijack()
}

func metricsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		route := "unmatched"
		if current := mux.CurrentRoute(r); current != nil {
			if template, err := current.GetPathTemplate(); err == nil {
				route = template
			}
		}

		start := time.Now()
		recorder := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(recorder, r)

		metrics.HTTPRequests.WithLabelValues(r.Method, route, strconv.Itoa(recorder.status)).Inc()
		metrics.HTTPLatency.WithLabelValues(r.Method, route).Observe(time.Since(start).Seconds())
	})
}
