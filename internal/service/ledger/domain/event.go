// internal/service/ledger/domain/event.go
package domain

// EventType 是账本领域事件的类型
type EventType string

const (
	EventAssociateRegistered   EventType = "AssociateRegistered"
	EventProfileUpdated        EventType = "ProfileUpdated"
	EventRoleAssigned          EventType = "RoleAssigned"
	EventProductChanged        EventType = "ProductChanged"
	EventOrderPlaced           EventType = "OrderPlaced"
	EventOrderDelivered        EventType = "OrderDelivered"
	EventReferralBonusCredited EventType = "ReferralBonusCredited"
	EventCommissionCredited    EventType = "CommissionCredited"
	EventPayoutRequested       EventType = "PayoutRequested"
	EventPayoutProcessed       EventType = "PayoutProcessed"
	EventWalletAdjusted        EventType = "WalletAdjusted"
)

// Event 在变更集提交成功之后才会被发布。
// Counterparty 的含义随类型变化: 上线、购买人或处理人。
type Event struct {
	Type         EventType `json:"type"`
	Associate    Principal `json:"associate"`
	Counterparty Principal `json:"counterparty,omitempty"`
	OrderID      uint64    `json:"orderId,omitempty"`
	PayoutID     uint64    `json:"payoutId,omitempty"`
	ProductID    uint64    `json:"productId,omitempty"`
	Level        int       `json:"level,omitempty"`
	Amount       int64     `json:"amount,omitempty"`
	Status       string    `json:"status,omitempty"`
	OccurredAt   int64     `json:"occurredAt"`
}
