package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/yeremiapane/campus-food/models"
	"github.com/yeremiapane/campus-food/utils"
	"gorm.io/gorm"
)

const (
	DecisionApprove = "approve"
	DecisionDecline = "decline"
)

// Eligibility tells the customer whether a reopening can be filed right now.
type Eligibility struct {
	Eligible       bool       `json:"eligible"`
	Reason         string     `json:"reason,omitempty"`
	WindowClosesAt *time.Time `json:"window_closes_at,omitempty"`
	RequestsUsed   int        `json:"requests_used"`
	RequestsLeft   int        `json:"requests_remaining"`
}

type ReopeningStatusView struct {
	OrderID     uint                     `json:"order_id"`
	OrderStatus models.OrderStatus       `json:"order_status"`
	Latest      *models.ReopeningRequest `json:"latest_request,omitempty"`
	Decision    string                   `json:"decision_message,omitempty"`
	Eligibility Eligibility              `json:"eligibility"`
}

type PendingReopening struct {
	Request       models.ReopeningRequest `json:"request"`
	Order         models.Order            `json:"order"`
	ReasonMessage string                  `json:"reason_message"`
}

// ReopeningService handles customer appeals against declined orders.
type ReopeningService struct {
	db       *gorm.DB
	orders   *OrderService
	notifier *NotificationEmitter
	cfg      Settings
}

func NewReopeningService(db *gorm.DB, orders *OrderService, notifier *NotificationEmitter, cfg Settings) *ReopeningService {
	return &ReopeningService{db: db, orders: orders, notifier: notifier, cfg: cfg.withDefaults()}
}

func (s *ReopeningService) eligibility(ctx context.Context, db *gorm.DB, o *models.Order) (Eligibility, error) {
	var used int64
	if err := db.WithContext(ctx).Model(&models.ReopeningRequest{}).Where("order_id = ?", o.ID).Count(&used).Error; err != nil {
		return Eligibility{}, err
	}
	var pending int64
	if err := db.WithContext(ctx).Model(&models.ReopeningRequest{}).
		Where("order_id = ? AND status = ?", o.ID, models.ReopeningPending).Count(&pending).Error; err != nil {
		return Eligibility{}, err
	}

	e := Eligibility{RequestsUsed: int(used), RequestsLeft: s.cfg.MaxReopeningRequests - int(used)}
	if e.RequestsLeft < 0 {
		e.RequestsLeft = 0
	}
	if o.Status == models.OrderStatusDeclined {
		declinedAt := o.UpdatedAt
		if o.DeclinedAt != nil {
			declinedAt = *o.DeclinedAt
		}
		closes := declinedAt.Add(s.cfg.ReopenWindow)
		e.WindowClosesAt = &closes
	}

	switch {
	case o.Status != models.OrderStatusDeclined:
		e.Reason = IneligibleNotDeclined
	case s.cfg.Now().After(*e.WindowClosesAt):
		e.Reason = IneligibleWindowExpired
	case int(used) >= s.cfg.MaxReopeningRequests:
		e.Reason = IneligibleTooManyRequest
	case pending > 0:
		e.Reason = IneligiblePending
	default:
		e.Eligible = true
	}
	return e, nil
}

// CanRequestReopening reports whether the order accepts a new request and, if not, why.
func (s *ReopeningService) CanRequestReopening(ctx context.Context, orderID uint) (bool, string, error) {
	o, err := s.orders.load(ctx, s.db, orderID)
	if err != nil {
		return false, "", err
	}
	if _, err := s.orders.expireIfDue(ctx, o); err != nil {
		return false, "", err
	}
	e, err := s.eligibility(ctx, s.db, o)
	if err != nil {
		return false, "", err
	}
	return e.Eligible, e.Reason, nil
}

// CreateRequest files a pending reopening request for a declined order of the customer.
func (s *ReopeningService) CreateRequest(ctx context.Context, orderID, customerID uint, reason models.Reason) (*models.ReopeningRequest, error) {
	if err := checkReason(reason, "reopening", models.IsReopeningRequestReason); err != nil {
		return nil, err
	}
	o, err := s.orders.load(ctx, s.db, orderID)
	if err != nil {
		return nil, err
	}
	if err := ownedByCustomer(o, customerID); err != nil {
		return nil, err
	}
	if _, err := s.orders.expireIfDue(ctx, o); err != nil {
		return nil, err
	}

	code, text := reason.Columns()
	req := models.ReopeningRequest{
		OrderID:      o.ID,
		PendingKey:   &o.ID,
		CustomerID:   customerID,
		ReasonCode:   code,
		CustomReason: text,
		Status:       models.ReopeningPending,
		CreatedAt:    s.cfg.Now(),
	}
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		// judge the row as it is now, not the copy read before the transaction
		if err := s.orders.reload(ctx, tx, o); err != nil {
			return err
		}
		e, err := s.eligibility(ctx, tx, o)
		if err != nil {
			return err
		}
		if !e.Eligible {
			return &NotEligibleError{Reason: e.Reason}
		}
		// claim the declined row; an approval racing us bumps the version too
		res := tx.Model(&models.Order{}).
			Where("id = ? AND status = ? AND version = ?", o.ID, models.OrderStatusDeclined, o.Version).
			Update("version", o.Version+1)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return fmt.Errorf("%w: order %d changed while the request was filed", ErrConflict, o.ID)
		}
		return tx.Omit("Order").Create(&req).Error
	})
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		// another request for the order went pending in between
		return nil, &NotEligibleError{Reason: IneligiblePending}
	}
	if errors.Is(err, ErrConflict) {
		if fresh, lerr := s.orders.load(ctx, s.db, orderID); lerr == nil {
			if e, eerr := s.eligibility(ctx, s.db, fresh); eerr == nil && !e.Eligible {
				return nil, &NotEligibleError{Reason: e.Reason}
			}
		}
		return nil, err
	}
	if err != nil {
		return nil, err
	}

	utils.InfoLogger.WithFields(logrus.Fields{
		"order_id":   o.ID,
		"request_id": req.ID,
		"reason":     code,
	}).Info("reopening requested")
	s.notifier.Emit(ctx, o.Concession.ConcessionaireID, ReopeningRequestEvent{
		OrderID:    o.ID,
		RequestID:  req.ID,
		CustomerID: customerID,
		ReasonCode: code,
		Reason:     models.ReopeningRequestMessage(reason),
	})
	return &req, nil
}

// proofDeclined tells whether the decline was about the uploaded receipt itself.
func proofDeclined(o *models.Order) bool {
	r, ok := o.DeclineReason()
	return ok && r.Code == models.DeclineInvalidReceipt
}

// reopenTarget is where an approved order lands under the configured policy.
func (s *ReopeningService) reopenTarget(o *models.Order) models.OrderStatus {
	if s.cfg.ReopenPolicy == ReopenPolicyAccept {
		settled := !o.PaymentMethod.RequiresProof() || (o.HasLiveProof() && !proofDeclined(o))
		if settled {
			return models.OrderStatusAccepted
		}
	}
	return models.OrderStatusSubmitted
}

func (s *ReopeningService) reopenChange(o *models.Order) change {
	to := s.reopenTarget(o)
	return change{
		to: to,
		guard: func(o *models.Order) error {
			if o.Status != models.OrderStatusDeclined {
				return transitionf("order %d is %s, only declined orders can be reopened", o.ID, o.Status)
			}
			return nil
		},
		fields: func(o *models.Order, now time.Time) map[string]interface{} {
			f := map[string]interface{}{
				"decline_reason_code": nil,
				"decline_reason_text": nil,
				"declined_at":         nil,
				"receipt_deadline":    nil,
			}
			if to == models.OrderStatusSubmitted && o.PaymentMethod.RequiresProof() {
				// the old proof was part of what got declined; a fresh one is needed
				f["receipt_url"] = nil
				f["receipt_submitted_at"] = nil
				f["receipt_deadline"] = now.Add(s.cfg.ReceiptGracePeriod)
			}
			return f
		},
	}
}

// RespondToRequest approves or declines a pending request. Approval reopens
// the order in the same transaction that resolves the request.
func (s *ReopeningService) RespondToRequest(ctx context.Context, requestID, concessionaireID uint, decision string, declineReason *models.Reason) (*models.ReopeningRequest, error) {
	if decision != DecisionApprove && decision != DecisionDecline {
		return nil, validationf("decision must be %q or %q", DecisionApprove, DecisionDecline)
	}
	if decision == DecisionDecline {
		if declineReason == nil {
			return nil, validationf("decline reason is required")
		}
		if err := checkReason(*declineReason, "reopening decline", models.IsReopeningDeclineReason); err != nil {
			return nil, err
		}
	}

	var req models.ReopeningRequest
	err := s.db.WithContext(ctx).Preload("Order.Concession").First(&req, requestID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, notFoundf("reopening request %d", requestID)
	}
	if err != nil {
		return nil, err
	}
	if err := ownedByConcessionaire(&req.Order, concessionaireID); err != nil {
		return nil, err
	}
	if req.Status != models.ReopeningPending {
		return nil, fmt.Errorf("%w: request %d is %s", ErrAlreadyResolved, req.ID, req.Status)
	}

	order := req.Order
	now := s.cfg.Now()
	reopened := false
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		fields := map[string]interface{}{
			"pending_key": nil,
			"resolved_at": now,
		}
		if decision == DecisionApprove {
			fields["status"] = models.ReopeningApproved
		} else {
			code, text := declineReason.Columns()
			fields["status"] = models.ReopeningDeclined
			fields["decline_reason_code"] = code
			fields["decline_reason_text"] = text
		}
		res := tx.Model(&models.ReopeningRequest{}).
			Where("id = ? AND status = ?", req.ID, models.ReopeningPending).
			Updates(fields)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return fmt.Errorf("%w: request %d was answered concurrently", ErrAlreadyResolved, req.ID)
		}

		if decision == DecisionApprove {
			changed, err := s.orders.apply(ctx, tx, &order, s.reopenChange(&order))
			if err != nil {
				return err
			}
			reopened = changed
		}
		return tx.First(&req, req.ID).Error
	})
	if err != nil {
		return nil, err
	}

	utils.InfoLogger.WithFields(logrus.Fields{
		"order_id":   order.ID,
		"request_id": req.ID,
		"decision":   decision,
	}).Info("reopening request resolved")

	if reopened {
		s.orders.notifyStatus(ctx, &order)
	}
	s.notifier.Emit(ctx, order.CustomerID, ReopeningResolutionEvent{
		OrderID:   order.ID,
		RequestID: req.ID,
		Approved:  decision == DecisionApprove,
		Status:    order.Status,
		Decision:  req.DecisionMessage(),
	})
	return &req, nil
}

// GetStatus returns the latest request for the order with the current eligibility.
func (s *ReopeningService) GetStatus(ctx context.Context, userID uint, role string, orderID uint) (*ReopeningStatusView, error) {
	o, err := s.orders.load(ctx, s.db, orderID)
	if err != nil {
		return nil, err
	}
	if err := canView(o, userID, role); err != nil {
		return nil, err
	}
	if _, err := s.orders.expireIfDue(ctx, o); err != nil {
		return nil, err
	}

	e, err := s.eligibility(ctx, s.db, o)
	if err != nil {
		return nil, err
	}
	view := &ReopeningStatusView{OrderID: o.ID, OrderStatus: o.Status, Eligibility: e}

	var latest models.ReopeningRequest
	err = s.db.WithContext(ctx).Where("order_id = ?", o.ID).Order("created_at desc").Order("id desc").First(&latest).Error
	switch {
	case err == nil:
		view.Latest = &latest
		view.Decision = latest.DecisionMessage()
	case !errors.Is(err, gorm.ErrRecordNotFound):
		return nil, err
	}
	return view, nil
}

// ListPendingForConcession returns open requests on the concessionaire's orders, oldest first.
func (s *ReopeningService) ListPendingForConcession(ctx context.Context, concessionaireID uint) ([]PendingReopening, error) {
	concessions := s.db.Model(&models.Concession{}).Select("id").Where("concessionaire_id = ?", concessionaireID)
	orders := s.db.Model(&models.Order{}).Select("id").Where("concession_id IN (?)", concessions)

	var reqs []models.ReopeningRequest
	err := s.db.WithContext(ctx).
		Preload("Order.Concession").
		Where("status = ? AND order_id IN (?)", models.ReopeningPending, orders).
		Order("created_at asc").Order("id asc").
		Find(&reqs).Error
	if err != nil {
		return nil, err
	}

	out := make([]PendingReopening, 0, len(reqs))
	for _, r := range reqs {
		out = append(out, PendingReopening{
			Request:       r,
			Order:         r.Order,
			ReasonMessage: models.ReopeningRequestMessage(r.Reason()),
		})
	}
	return out, nil
}
