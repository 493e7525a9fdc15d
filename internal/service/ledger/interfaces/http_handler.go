// internal/service/ledger/interfaces/http_handler.go
package interfaces

import (
	"encoding/json"
	"net/http"
	"strconv"
	"strings"

	"associate-ledger/internal/pkg/logger"
	"associate-ledger/internal/service/ledger/application"
	"associate-ledger/internal/service/ledger/domain"

	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/propagation"
)

const (
	// principalHeader 由前置的身份服务写入，值为已认证的账户
	principalHeader   = "X-Principal"
	idempotencyHeader = "Idempotency-Key"
)

// LedgerHandler 封装了账本服务的 HTTP 处理器
type LedgerHandler struct {
	service *application.LedgerService
}

// NewLedgerHandler 创建一个新的 HTTP 处理器实例
func NewLedgerHandler(service *application.LedgerService) *LedgerHandler {
	return &LedgerHandler{service: service}
}

type ledgerFunc func(w http.ResponseWriter, r *http.Request, caller domain.Principal)

// RegisterRoutes 在 ServeMux 上注册所有路由
func (h *LedgerHandler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(http.StatusOK) })
	mux.Handle("/metrics", promhttp.Handler())

	routes := map[string]ledgerFunc{
		"POST /v1/associates/root":                 h.registerRoot,
		"POST /v1/associates/upline":               h.registerUnderUpline,
		"POST /v1/associates/referral":             h.registerUnderReferralCode,
		"GET /v1/associates/{principal}/profile":   h.getUserProfile,
		"GET /v1/associates/{principal}/orders":    h.getOrderHistory,
		"GET /v1/associates/{principal}/referrals": h.getReferralsOf,
		"GET /v1/me/profile":                       h.getMyProfile,
		"PUT /v1/me/profile":                       h.saveMyProfile,
		"GET /v1/me/role":                          h.getMyRole,
		"GET /v1/me/referrals":                     h.getDirectReferrals,
		"GET /v1/me/downline":                      h.getDownline,
		"GET /v1/me/wallet":                        h.getWallet,
		"GET /v1/me/dashboard":                     h.getDashboard,
		"GET /v1/me/bonuses":                       h.getBonusHistory,
		"GET /v1/me/payouts":                       h.getMyPayouts,
		"POST /v1/me/payouts":                      h.requestPayout,
		"POST /v1/orders":                          h.placeOrder,
		"POST /v1/orders/{id}/deliver":             h.markDelivered,
		"POST /v1/orders/{id}/commission":          h.settleCommission,
		"GET /v1/products":                         h.listProducts,
		"POST /v1/products":                        h.createProduct,
		"GET /v1/products/{id}":                    h.getProduct,
		"PUT /v1/products/{id}":                    h.updateProduct,
		"GET /v1/id-products":                      h.listIDProducts,
		"PUT /v1/id-products/{id}":                 h.designateIDProduct,
		"DELETE /v1/id-products/{id}":              h.removeIDProduct,
		"GET /v1/payouts":                          h.listPayouts,
		"POST /v1/payouts/{id}/process":            h.processPayout,
		"PUT /v1/roles/{principal}":                h.assignRole,
		"PUT /v1/wallets/{principal}":              h.updateWallet,
		"GET /v1/bonus-summary":                    h.bonusSummary,
		"GET /v1/bonus-summary/verify":             h.verifyAggregate,
	}
	for pattern, fn := range routes {
		mux.HandleFunc(pattern, h.wrap(fn))
	}
}

// wrap 提取上游的追踪上下文与调用方身份
func (h *LedgerHandler) wrap(fn ledgerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := otel.GetTextMapPropagator().Extract(r.Context(), propagation.HeaderCarrier(r.Header))
		caller := domain.Principal(strings.TrimSpace(r.Header.Get(principalHeader)))
		fn(w, r.WithContext(ctx), caller)
	}
}

// --- 注册与资料 ---

type profileRequest struct {
	Name         string `json:"name"`
	Email        string `json:"email"`
	Phone        string `json:"phone"`
	AssociateID  string `json:"associateId"`
	ReferralCode string `json:"referralCode"`
}

func (p profileRequest) toDomain() domain.Profile {
	return domain.Profile{Name: p.Name, Email: p.Email, Phone: p.Phone, AssociateID: p.AssociateID, ReferralCode: p.ReferralCode}
}

type registerRequest struct {
	Profile           profileRequest `json:"profile"`
	UplineAssociateID string         `json:"uplineAssociateId"`
	ReferrerCode      string         `json:"referrerCode"`
}

func (h *LedgerHandler) registerRoot(w http.ResponseWriter, r *http.Request, caller domain.Principal) {
	var req registerRequest
	if !decode(w, r, &req) {
		return
	}
	respond(w, r, http.StatusCreated, nil, h.service.RegisterRoot(r.Context(), caller, req.Profile.toDomain()))
}

func (h *LedgerHandler) registerUnderUpline(w http.ResponseWriter, r *http.Request, caller domain.Principal) {
	var req registerRequest
	if !decode(w, r, &req) {
		return
	}
	respond(w, r, http.StatusCreated, nil, h.service.RegisterUnderUpline(r.Context(), caller, req.Profile.toDomain(), req.UplineAssociateID))
}

func (h *LedgerHandler) registerUnderReferralCode(w http.ResponseWriter, r *http.Request, caller domain.Principal) {
	var req registerRequest
	if !decode(w, r, &req) {
		return
	}
	respond(w, r, http.StatusCreated, nil, h.service.RegisterUnderReferralCode(r.Context(), caller, req.Profile.toDomain(), req.ReferrerCode))
}

func (h *LedgerHandler) getMyProfile(w http.ResponseWriter, r *http.Request, caller domain.Principal) {
	view, err := h.service.GetCallerUserProfile(r.Context(), caller)
	respond(w, r, http.StatusOK, view, err)
}

func (h *LedgerHandler) saveMyProfile(w http.ResponseWriter, r *http.Request, caller domain.Principal) {
	var req profileRequest
	if !decode(w, r, &req) {
		return
	}
	respond(w, r, http.StatusNoContent, nil, h.service.SaveCallerUserProfile(r.Context(), caller, req.Name, req.Email, req.Phone))
}

func (h *LedgerHandler) getUserProfile(w http.ResponseWriter, r *http.Request, caller domain.Principal) {
	view, err := h.service.GetUserProfile(r.Context(), caller, domain.Principal(r.PathValue("principal")))
	respond(w, r, http.StatusOK, view, err)
}

func (h *LedgerHandler) getMyRole(w http.ResponseWriter, r *http.Request, caller domain.Principal) {
	role := h.service.GetCallerUserRole(r.Context(), caller)
	respond(w, r, http.StatusOK, map[string]interface{}{"role": role, "isAdmin": role == domain.RoleAdmin}, nil)
}

type roleRequest struct {
	Role string `json:"role"`
}

func (h *LedgerHandler) assignRole(w http.ResponseWriter, r *http.Request, caller domain.Principal) {
	var req roleRequest
	if !decode(w, r, &req) {
		return
	}
	err := h.service.AssignCallerUserRole(r.Context(), caller, domain.Principal(r.PathValue("principal")), domain.Role(req.Role))
	respond(w, r, http.StatusNoContent, nil, err)
}

// --- 推荐关系 ---

func (h *LedgerHandler) getDirectReferrals(w http.ResponseWriter, r *http.Request, caller domain.Principal) {
	refs, err := h.service.GetDirectReferrals(r.Context(), caller)
	respond(w, r, http.StatusOK, refs, err)
}

func (h *LedgerHandler) getReferralsOf(w http.ResponseWriter, r *http.Request, caller domain.Principal) {
	refs, err := h.service.DirectReferralsOf(r.Context(), caller, domain.Principal(r.PathValue("principal")))
	respond(w, r, http.StatusOK, refs, err)
}

func (h *LedgerHandler) getDownline(w http.ResponseWriter, r *http.Request, caller domain.Principal) {
	d, err := h.service.GetDownlineStructure(r.Context(), caller)
	respond(w, r, http.StatusOK, d, err)
}

// --- 订单 ---

type placeOrderRequest struct {
	ProductID uint64 `json:"productId"`
	Quantity  int64  `json:"quantity"`
}

func (h *LedgerHandler) placeOrder(w http.ResponseWriter, r *http.Request, caller domain.Principal) {
	var req placeOrderRequest
	if !decode(w, r, &req) {
		return
	}
	order, err := h.service.PlaceOrder(r.Context(), caller, req.ProductID, req.Quantity, r.Header.Get(idempotencyHeader))
	respond(w, r, http.StatusCreated, order, err)
}

func (h *LedgerHandler) getOrderHistory(w http.ResponseWriter, r *http.Request, caller domain.Principal) {
	orders, err := h.service.GetOrderHistory(r.Context(), caller, domain.Principal(r.PathValue("principal")))
	respond(w, r, http.StatusOK, orders, err)
}

func (h *LedgerHandler) markDelivered(w http.ResponseWriter, r *http.Request, caller domain.Principal) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	respond(w, r, http.StatusNoContent, nil, h.service.MarkOrderDelivered(r.Context(), caller, id))
}

func (h *LedgerHandler) settleCommission(w http.ResponseWriter, r *http.Request, caller domain.Principal) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	records, err := h.service.SettleLegacyCommission(r.Context(), caller, id)
	respond(w, r, http.StatusOK, records, err)
}

// --- 目录 ---

type productRequest struct {
	Name        string `json:"name"`
	Description string `json:"description"`
	Price       int64  `json:"price"`
	Category    string `json:"category"`
}

func (p productRequest) toDomain() domain.ProductInput {
	return domain.ProductInput{Name: p.Name, Description: p.Description, Price: p.Price, Category: domain.Category(p.Category)}
}

func (h *LedgerHandler) listProducts(w http.ResponseWriter, r *http.Request, caller domain.Principal) {
	if c := r.URL.Query().Get("category"); c != "" {
		category, err := domain.ParseCategory(c)
		if err != nil {
			respond(w, r, 0, nil, err)
			return
		}
		products, err := h.service.GetProductsByCategory(r.Context(), caller, category)
		respond(w, r, http.StatusOK, products, err)
		return
	}
	products, err := h.service.GetAllProducts(r.Context(), caller)
	respond(w, r, http.StatusOK, products, err)
}

func (h *LedgerHandler) getProduct(w http.ResponseWriter, r *http.Request, caller domain.Principal) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	p, err := h.service.GetProduct(r.Context(), caller, id)
	respond(w, r, http.StatusOK, p, err)
}

func (h *LedgerHandler) createProduct(w http.ResponseWriter, r *http.Request, caller domain.Principal) {
	var req productRequest
	if !decode(w, r, &req) {
		return
	}
	p, err := h.service.CreateProduct(r.Context(), caller, req.toDomain())
	respond(w, r, http.StatusCreated, p, err)
}

func (h *LedgerHandler) updateProduct(w http.ResponseWriter, r *http.Request, caller domain.Principal) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	var req productRequest
	if !decode(w, r, &req) {
		return
	}
	p, err := h.service.UpdateProduct(r.Context(), caller, id, req.toDomain())
	respond(w, r, http.StatusOK, p, err)
}

func (h *LedgerHandler) listIDProducts(w http.ResponseWriter, r *http.Request, caller domain.Principal) {
	products, err := h.service.GetIDProducts(r.Context(), caller)
	respond(w, r, http.StatusOK, products, err)
}

func (h *LedgerHandler) designateIDProduct(w http.ResponseWriter, r *http.Request, caller domain.Principal) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	respond(w, r, http.StatusNoContent, nil, h.service.DesignateIDProduct(r.Context(), caller, id))
}

func (h *LedgerHandler) removeIDProduct(w http.ResponseWriter, r *http.Request, caller domain.Principal) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	respond(w, r, http.StatusNoContent, nil, h.service.RemoveIDProduct(r.Context(), caller, id))
}

// --- 钱包与提现 ---

type amountRequest struct {
	Amount int64 `json:"amount"`
}

type processPayoutRequest struct {
	Approved bool `json:"approved"`
}

func (h *LedgerHandler) getWallet(w http.ResponseWriter, r *http.Request, caller domain.Principal) {
	wallet, err := h.service.GetWalletBalance(r.Context(), caller)
	respond(w, r, http.StatusOK, wallet, err)
}

func (h *LedgerHandler) getDashboard(w http.ResponseWriter, r *http.Request, caller domain.Principal) {
	dashboard, err := h.service.GetEarningsDashboard(r.Context(), caller)
	respond(w, r, http.StatusOK, dashboard, err)
}

func (h *LedgerHandler) getBonusHistory(w http.ResponseWriter, r *http.Request, caller domain.Principal) {
	history, err := h.service.GetReferralBonusHistory(r.Context(), caller)
	respond(w, r, http.StatusOK, history, err)
}

func (h *LedgerHandler) bonusSummary(w http.ResponseWriter, r *http.Request, caller domain.Principal) {
	respond(w, r, http.StatusOK, h.service.GetFixedReferralBonusSummary(r.Context()), nil)
}

// verifyAggregate 重新计算奖金聚合并与物化视图比对
func (h *LedgerHandler) verifyAggregate(w http.ResponseWriter, r *http.Request, caller domain.Principal) {
	if err := h.service.VerifyAggregate(r.Context()); err != nil {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusConflict)
		json.NewEncoder(w).Encode(map[string]interface{}{"consistent": false, "error": err.Error()})
		return
	}
	respond(w, r, http.StatusOK, map[string]bool{"consistent": true}, nil)
}

func (h *LedgerHandler) getMyPayouts(w http.ResponseWriter, r *http.Request, caller domain.Principal) {
	payouts, err := h.service.GetMyPayoutRequests(r.Context(), caller)
	respond(w, r, http.StatusOK, payouts, err)
}

func (h *LedgerHandler) requestPayout(w http.ResponseWriter, r *http.Request, caller domain.Principal) {
	var req amountRequest
	if !decode(w, r, &req) {
		return
	}
	p, err := h.service.RequestPayout(r.Context(), caller, req.Amount)
	respond(w, r, http.StatusCreated, p, err)
}

func (h *LedgerHandler) listPayouts(w http.ResponseWriter, r *http.Request, caller domain.Principal) {
	payouts, err := h.service.GetAllPayoutRequests(r.Context(), caller)
	respond(w, r, http.StatusOK, payouts, err)
}

func (h *LedgerHandler) processPayout(w http.ResponseWriter, r *http.Request, caller domain.Principal) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	var req processPayoutRequest
	if !decode(w, r, &req) {
		return
	}
	p, err := h.service.ProcessPayoutRequest(r.Context(), caller, id, req.Approved)
	respond(w, r, http.StatusOK, p, err)
}

func (h *LedgerHandler) updateWallet(w http.ResponseWriter, r *http.Request, caller domain.Principal) {
	var req amountRequest
	if !decode(w, r, &req) {
		return
	}
	err := h.service.UpdateWalletBalance(r.Context(), caller, domain.Principal(r.PathValue("principal")), req.Amount)
	respond(w, r, http.StatusNoContent, nil, err)
}

// --- 工具函数 ---

func decode(w http.ResponseWriter, r *http.Request, dst interface{}) bool {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return false
	}
	return true
}

func pathID(w http.ResponseWriter, r *http.Request) (uint64, bool) {
	id, err := strconv.ParseUint(r.PathValue("id"), 10, 64)
	if err != nil {
		http.Error(w, "Invalid id", http.StatusBadRequest)
		return 0, false
	}
	return id, true
}

// respond 写出结果；err 非空时按错误类型映射状态码
func respond(w http.ResponseWriter, r *http.Request, status int, body interface{}, err error) {
	if err != nil {
		code := statusOf(err)
		if code == http.StatusInternalServerError {
			logger.Ctx(r.Context()).Error().Err(err).Str("path", r.URL.Path).Msg("Ledger request failed")
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(code)
		json.NewEncoder(w).Encode(map[string]string{"error": err.Error()})
		return
	}
	if body == nil {
		w.WriteHeader(status)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(body)
}

func statusOf(err error) int {
	switch {
	case errors.Is(err, domain.ErrProductNotFound),
		errors.Is(err, domain.ErrPayoutNotFound),
		errors.Is(err, domain.ErrOrderNotFound),
		errors.Is(err, domain.ErrAssociateNotFound):
		return http.StatusNotFound
	case errors.Is(err, domain.ErrUnauthorized),
		errors.Is(err, domain.ErrNotRegistered):
		return http.StatusForbidden
	case errors.Is(err, domain.ErrValidation),
		errors.Is(err, domain.ErrInvalidQuantity),
		errors.Is(err, domain.ErrInvalidAmount),
		errors.Is(err, domain.ErrInvalidUpline):
		return http.StatusBadRequest
	case errors.Is(err, domain.ErrDuplicateIdentity),
		errors.Is(err, domain.ErrAlreadyRegistered),
		errors.Is(err, domain.ErrPayoutAlreadyProcessed),
		errors.Is(err, domain.ErrCommissionAlreadySettled),
		errors.Is(err, domain.ErrInvalidOrderTransition),
		errors.Is(err, domain.ErrDuplicateRequest):
		return http.StatusConflict
	case errors.Is(err, domain.ErrInsufficientBalance):
		return http.StatusUnprocessableEntity
	case errors.Is(err, domain.ErrWriterLost):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}
