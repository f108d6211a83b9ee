// Package services – EntitlementService
//
// This file implements the entitlement and purchase state machine. It decides
// whether a user may download a file, creates pending purchases, applies admin
// decisions and records authorized downloads.
//
// Entitlement is never cached: every check reads the catalog and the purchase
// ledger inside the calling request, so an approval or decline is visible to
// the very next request.
//
// Atomicity:
//   - InitiatePurchase performs the duplicate check and the insert in one
//     transaction; the partial unique index ux_purchases_active settles races
//     and the loser is answered with the winner's purchase.
//   - DecidePurchase is a compare-and-swap on status = 'pending'. The invoice
//     and the activity entry commit in the same transaction.
//   - RecordDownload re-checks entitlement and upserts the download row in one
//     transaction.
//
// Every store call runs under StoreTimeout; timeouts and connection failures
// surface as ErrStoreUnavailable. Events are published after commit and a
// publish failure is only logged.
//
// Observability: all public methods are OpenTelemetry-instrumented.
package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"gorm.io/gorm"

	"github.com/tbourn/go-filemarket-backend/internal/domain"
	"github.com/tbourn/go-filemarket-backend/internal/events"
	"github.com/tbourn/go-filemarket-backend/internal/identity"
	"github.com/tbourn/go-filemarket-backend/internal/repo"
	"github.com/tbourn/go-filemarket-backend/internal/utils"
)

// maxWriteAttempts bounds retries of a ledger write that lost a race.
const maxWriteAttempts = 3

// EntitlementService is the core of the marketplace.
type EntitlementService struct {
	// DB is the GORM handle used for persistence.
	DB *gorm.DB
	// Identity resolves bearer tokens for BrowseEntitlement.
	Identity identity.Resolver
	// Events receives lifecycle events after commit.
	Events events.Publisher
	// PaymentMethods is the enabled payment tag allow-list.
	PaymentMethods *PaymentMethods
	// TaxBPS is the invoice tax rate in basis points (1/100 of a percent).
	TaxBPS int64
	// StoreTimeout bounds the store work of a single call.
	StoreTimeout time.Duration
	// IdempotencyTTL is how long a download retry key keeps replaying.
	IdempotencyTTL time.Duration
	// PublishTimeout bounds each post-commit event publish.
	PublishTimeout time.Duration
	// Now is the clock; defaults to time.Now.
	Now func() time.Time
}

// NewEntitlementService constructs an EntitlementService with defaults for
// the allow-list, clock, timeout and event sink.
func NewEntitlementService(db *gorm.DB, resolver identity.Resolver, pub events.Publisher) *EntitlementService {
	if pub == nil {
		pub = events.Nop{}
	}
	return &EntitlementService{
		DB:             db,
		Identity:       resolver,
		Events:         pub,
		PaymentMethods: NewPaymentMethods(DefaultPaymentMethods...),
		StoreTimeout:   DefaultStoreTimeout,
		IdempotencyTTL: 24 * time.Hour,
		PublishTimeout: DefaultPublishTimeout,
		Now:            time.Now,
	}
}

// errKeyClaimed reports that a concurrent request committed the same
// download retry key first.
var errKeyClaimed = errors.New("download key already claimed")

// Browse is the storefront view of a file for the current caller.
type Browse struct {
	FileID          string `json:"file_id"`
	IsFree          bool   `json:"is_free"`
	AlreadyApproved bool   `json:"already_approved"`
	HasPending      bool   `json:"has_pending"`
	CanBuy          bool   `json:"can_buy"`
	Authenticated   bool   `json:"authenticated"`
}

func (s *EntitlementService) now() time.Time {
	if s.Now != nil {
		return s.Now().UTC()
	}
	return time.Now().UTC()
}

// DefaultPublishTimeout bounds an event publish when none is configured.
const DefaultPublishTimeout = 2 * time.Second

// publish runs after commit. It outlives a cancelled request so a client
// hanging up does not drop the event, but never waits past PublishTimeout.
func (s *EntitlementService) publish(ctx context.Context, e events.Event) {
	if s.Events == nil {
		return
	}
	d := s.PublishTimeout
	if d <= 0 {
		d = DefaultPublishTimeout
	}
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), d)
	defer cancel()
	if err := s.Events.Publish(ctx, e); err != nil {
		log.Warn().Err(err).
			Str("event_type", string(e.Type)).
			Str("event_id", e.ID).
			Msg("event publish failed")
	}
}

func spanErr(span trace.Span, err error) error {
	if err != nil {
		span.RecordError(err)
		if k := KindOf(err); k == KindInternal || k == KindUnavailable {
			span.SetStatus(codes.Error, err.Error())
		}
	}
	return err
}

func loadFile(ctx context.Context, db *gorm.DB, fileID string) (*domain.File, error) {
	f, err := repo.GetFile(ctx, db, fileID)
	if errors.Is(err, repo.ErrNotFound) {
		return nil, ErrFileNotFound
	}
	return f, err
}

// InitiatePurchase creates a pending purchase of fileID for userID, capturing
// the current catalog price as the purchase amount.
//
// When the user already has a pending or approved purchase for the file,
// nothing is written and that purchase is returned together with
// ErrDuplicatePurchase, so a retried request yields the same purchase id.
func (s *EntitlementService) InitiatePurchase(ctx context.Context, userID, fileID, paymentMethod string) (*domain.Purchase, error) {
	tr := otel.Tracer("services/EntitlementService")
	ctx, span := tr.Start(ctx, "InitiatePurchase",
		trace.WithAttributes(
			attribute.String("user.id", userID),
			attribute.String("file.id", fileID),
		),
	)
	defer span.End()

	if strings.TrimSpace(userID) == "" {
		return nil, spanErr(span, ErrUnauthenticated)
	}
	fileID = strings.TrimSpace(fileID)
	if fileID == "" {
		return nil, spanErr(span, ErrInvalidInput)
	}
	method, err := s.PaymentMethods.Normalize(paymentMethod)
	if err != nil {
		return nil, spanErr(span, err)
	}

	sctx, cancel := withStoreTimeout(ctx, s.StoreTimeout)
	defer cancel()

	var (
		purchase  *domain.Purchase
		duplicate bool
	)
	for attempt := 1; ; attempt++ {
		duplicate = false
		err = s.DB.WithContext(sctx).Transaction(func(tx *gorm.DB) error {
			file, err := loadFile(sctx, tx, fileID)
			if err != nil {
				return err
			}
			if file.IsFree {
				return ErrFileIsFree
			}
			p, err := repo.InsertPending(sctx, tx, userID, fileID, method, file.Price)
			if errors.Is(err, repo.ErrDuplicate) {
				purchase, duplicate = p, true
				return nil
			}
			if err != nil {
				return err
			}
			purchase = p
			amount := p.Amount
			return repo.AppendActivity(sctx, tx, &domain.ActivityLog{
				ActorID:       userID,
				Action:        domain.ActionPurchaseInitiated,
				ResourceType:  domain.ResourcePurchase,
				ResourceID:    p.ID,
				FileID:        fileID,
				Amount:        &amount,
				PaymentMethod: method,
				Status:        string(p.Status),
				CreatedAt:     p.CreatedAt,
			})
		})
		if err == nil || !retryable(err) || attempt >= maxWriteAttempts {
			break
		}
	}
	if err != nil {
		return nil, spanErr(span, storeErr(sctx, err))
	}

	span.SetAttributes(attribute.String("purchase.id", purchase.ID), attribute.Bool("purchase.duplicate", duplicate))
	if duplicate {
		return purchase, ErrDuplicatePurchase
	}

	purchasesInitiated.WithLabelValues(method).Inc()
	e := events.New(events.PurchaseInitiated)
	e.ActorID, e.UserID, e.FileID, e.PurchaseID = userID, userID, fileID, purchase.ID
	e.Status, e.PaymentMethod, e.Amount = string(purchase.Status), method, purchase.Amount
	s.publish(ctx, e)
	return purchase, nil
}

// DecidePurchase applies an admin decision to a pending purchase.
//
// Only admins may decide. Deciding a purchase that already left 'pending'
// returns ErrAlreadyFinalized and changes nothing. Approval issues the
// purchase's invoice in the same transaction.
func (s *EntitlementService) DecidePurchase(ctx context.Context, actor identity.Identity, purchaseID string, decision domain.Decision) (*domain.Purchase, error) {
	tr := otel.Tracer("services/EntitlementService")
	ctx, span := tr.Start(ctx, "DecidePurchase",
		trace.WithAttributes(
			attribute.String("purchase.id", purchaseID),
			attribute.String("actor.id", actor.UserID),
			attribute.String("decision", string(decision)),
		),
	)
	defer span.End()

	if strings.TrimSpace(actor.UserID) == "" {
		return nil, spanErr(span, ErrUnauthenticated)
	}
	if !actor.IsAdmin {
		return nil, spanErr(span, ErrNotAuthorized)
	}
	to, ok := decision.Target()
	if !ok {
		return nil, spanErr(span, ErrInvalidDecision)
	}
	purchaseID = strings.TrimSpace(purchaseID)
	if purchaseID == "" {
		return nil, spanErr(span, ErrInvalidInput)
	}

	sctx, cancel := withStoreTimeout(ctx, s.StoreTimeout)
	defer cancel()

	var (
		purchase *domain.Purchase
		invoice  *domain.Invoice
		err      error
	)
	for attempt := 1; ; attempt++ {
		invoice = nil
		err = s.DB.WithContext(sctx).Transaction(func(tx *gorm.DB) error {
			now := s.now()
			p, err := repo.UpdateStatus(sctx, tx, purchaseID, to, now)
			switch {
			case errors.Is(err, repo.ErrNotFound):
				return ErrPurchaseNotFound
			case errors.Is(err, repo.ErrNotPending):
				return ErrAlreadyFinalized
			case err != nil:
				return err
			}
			purchase = p

			action := domain.ActionPurchaseDeclined
			if to == domain.PurchaseApproved {
				action = domain.ActionPurchaseApproved
				invoice = newInvoice(p, s.TaxBPS, now)
				if err := repo.CreateInvoice(sctx, tx, invoice); err != nil {
					return fmt.Errorf("issue invoice: %w", err)
				}
			}
			amount := p.Amount
			return repo.AppendActivity(sctx, tx, &domain.ActivityLog{
				ActorID:       actor.UserID,
				Action:        action,
				ResourceType:  domain.ResourcePurchase,
				ResourceID:    p.ID,
				FileID:        p.FileID,
				Amount:        &amount,
				PaymentMethod: p.PaymentMethod,
				Status:        string(p.Status),
				CreatedAt:     now,
			})
		})
		if err == nil || !isBusy(err) || attempt >= maxWriteAttempts {
			break
		}
	}
	if err != nil {
		return nil, spanErr(span, storeErr(sctx, err))
	}

	purchaseDecisions.WithLabelValues(string(decision)).Inc()
	typ := events.PurchaseDeclined
	if to == domain.PurchaseApproved {
		typ = events.PurchaseApproved
	}
	e := events.New(typ)
	e.ActorID, e.UserID, e.FileID, e.PurchaseID = actor.UserID, purchase.UserID, purchase.FileID, purchase.ID
	e.Status, e.PaymentMethod, e.Amount = string(purchase.Status), purchase.PaymentMethod, purchase.Amount
	s.publish(ctx, e)
	return purchase, nil
}

// newInvoice prices an invoice from the purchase's snapshotted amount.
func newInvoice(p *domain.Purchase, taxBPS int64, now time.Time) *domain.Invoice {
	tax := p.Amount * taxBPS / 10000
	id := uuid.NewString()
	return &domain.Invoice{
		ID:            id,
		InvoiceNumber: fmt.Sprintf("INV-%s-%s", now.Format("20060102"), strings.ReplaceAll(id, "-", "")[:8]),
		PurchaseID:    p.ID,
		UserID:        p.UserID,
		Amount:        p.Amount,
		TaxAmount:     tax,
		TotalAmount:   p.Amount + tax,
		Status:        domain.InvoiceDraft,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
}

// entitlement computes file.isFree OR an approved purchase exists. The
// approved purchase, when any, is returned so the download can reference it.
func entitlement(ctx context.Context, db *gorm.DB, userID, fileID string) (*domain.File, *domain.Purchase, bool, error) {
	file, err := loadFile(ctx, db, fileID)
	if err != nil {
		return nil, nil, false, err
	}
	if file.IsFree {
		return file, nil, true, nil
	}
	if userID == "" {
		return file, nil, false, nil
	}
	p, err := repo.FindApproved(ctx, db, userID, fileID)
	if errors.Is(err, repo.ErrNotFound) {
		return file, nil, false, nil
	}
	if err != nil {
		return nil, nil, false, err
	}
	return file, p, true, nil
}

// CheckEntitlement reports whether userID may download fileID. An empty
// userID is an anonymous caller, entitled to free files only. It has no side
// effects.
func (s *EntitlementService) CheckEntitlement(ctx context.Context, userID, fileID string) (bool, error) {
	tr := otel.Tracer("services/EntitlementService")
	ctx, span := tr.Start(ctx, "CheckEntitlement",
		trace.WithAttributes(
			attribute.String("user.id", userID),
			attribute.String("file.id", fileID),
		),
	)
	defer span.End()

	fileID = strings.TrimSpace(fileID)
	if fileID == "" {
		return false, spanErr(span, ErrInvalidInput)
	}
	sctx, cancel := withStoreTimeout(ctx, s.StoreTimeout)
	defer cancel()

	_, _, ok, err := entitlement(sctx, s.DB, strings.TrimSpace(userID), fileID)
	if err != nil {
		return false, spanErr(span, storeErr(sctx, err))
	}
	span.SetAttributes(attribute.Bool("entitled", ok))
	return ok, nil
}

// RecordDownload records an authorized download of fileID by userID and
// returns the updated accounting row. Entitlement is re-checked inside the
// same transaction as the upsert; a caller without it gets ErrNotEntitled.
func (s *EntitlementService) RecordDownload(ctx context.Context, userID, fileID string) (*domain.DownloadRecord, error) {
	return s.recordDownload(ctx, userID, fileID, "")
}

// RecordDownloadOnce is RecordDownload guarded by a client retry key. The key
// is claimed in the transaction that bumps the counter, so of several
// requests sharing a key exactly one is counted. The others get that
// request's row back with replayed set. An empty key is RecordDownload.
func (s *EntitlementService) RecordDownloadOnce(ctx context.Context, userID, fileID, key string) (rec *domain.DownloadRecord, replayed bool, err error) {
	rec, err = s.recordDownload(ctx, userID, fileID, key)
	if !errors.Is(err, errKeyClaimed) {
		return rec, false, err
	}
	userID, fileID = strings.TrimSpace(userID), strings.TrimSpace(fileID)

	sctx, cancel := withStoreTimeout(ctx, s.StoreTimeout)
	defer cancel()
	prior, err := repo.GetIdempotency(sctx, s.DB, userID, fileID, key, s.now())
	if err != nil {
		// The winner's claim expired in between; the caller may retry.
		return nil, false, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	rec, err = s.ReplayDownload(ctx, userID, fileID, prior.ResourceID)
	return rec, err == nil, err
}

func (s *EntitlementService) keyTTL() time.Duration {
	if s.IdempotencyTTL <= 0 {
		return 24 * time.Hour
	}
	return s.IdempotencyTTL
}

func (s *EntitlementService) recordDownload(ctx context.Context, userID, fileID, key string) (*domain.DownloadRecord, error) {
	tr := otel.Tracer("services/EntitlementService")
	ctx, span := tr.Start(ctx, "RecordDownload",
		trace.WithAttributes(
			attribute.String("user.id", userID),
			attribute.String("file.id", fileID),
		),
	)
	defer span.End()

	userID = strings.TrimSpace(userID)
	if userID == "" {
		return nil, spanErr(span, ErrUnauthenticated)
	}
	fileID = strings.TrimSpace(fileID)
	if fileID == "" {
		return nil, spanErr(span, ErrInvalidInput)
	}

	sctx, cancel := withStoreTimeout(ctx, s.StoreTimeout)
	defer cancel()

	var (
		rec  *domain.DownloadRecord
		free bool
		err  error
	)
	for attempt := 1; ; attempt++ {
		err = s.DB.WithContext(sctx).Transaction(func(tx *gorm.DB) error {
			file, p, ok, err := entitlement(sctx, tx, userID, fileID)
			if err != nil {
				return err
			}
			if !ok {
				return ErrNotEntitled
			}
			free = file.IsFree
			var purchaseID *string
			if p != nil {
				purchaseID = &p.ID
			}
			now := s.now()
			rec, err = repo.UpsertDownload(sctx, tx, userID, fileID, purchaseID, now)
			if err != nil {
				return err
			}
			if err := repo.AppendActivity(sctx, tx, &domain.ActivityLog{
				ActorID:      userID,
				Action:       domain.ActionDownloadRecorded,
				ResourceType: domain.ResourceDownload,
				ResourceID:   rec.ID,
				FileID:       fileID,
				CreatedAt:    now,
			}); err != nil {
				return err
			}
			if key == "" {
				return nil
			}
			err = repo.ClaimIdempotency(sctx, tx, userID, fileID, key, rec.ID, s.keyTTL(), now)
			if errors.Is(err, repo.ErrDuplicate) {
				return errKeyClaimed
			}
			return err
		})
		if err == nil || !retryable(err) || attempt >= maxWriteAttempts {
			break
		}
	}
	if errors.Is(err, ErrNotEntitled) {
		entitlementDenials.Inc()
	}
	if errors.Is(err, errKeyClaimed) {
		span.SetAttributes(attribute.Bool("download.replayed", true))
		return nil, err
	}
	if err != nil {
		return nil, spanErr(span, storeErr(sctx, err))
	}

	kind := "purchased"
	if free {
		kind = "free"
	}
	downloadsRecorded.WithLabelValues(kind).Inc()
	span.SetAttributes(attribute.Int64("download.count", rec.DownloadCount))

	e := events.New(events.DownloadRecorded)
	e.ActorID, e.UserID, e.FileID, e.DownloadID = userID, userID, fileID, rec.ID
	if rec.PurchaseID != nil {
		e.PurchaseID = *rec.PurchaseID
	}
	e.DownloadCount = rec.DownloadCount
	s.publish(ctx, e)
	return rec, nil
}

// ReplayDownload returns a previously recorded download row by id without
// counting a new download. It is used to answer retried requests carrying
// the same idempotency key. The row must belong to userID and fileID.
func (s *EntitlementService) ReplayDownload(ctx context.Context, userID, fileID, downloadID string) (*domain.DownloadRecord, error) {
	sctx, cancel := withStoreTimeout(ctx, s.StoreTimeout)
	defer cancel()

	rec, err := repo.GetDownloadByID(sctx, s.DB, downloadID)
	if errors.Is(err, repo.ErrNotFound) {
		return nil, ErrNotEntitled
	}
	if err != nil {
		return nil, storeErr(sctx, err)
	}
	if rec.UserID != userID || rec.FileID != fileID {
		return nil, ErrNotEntitled
	}
	return rec, nil
}

// Browse composes catalog and ledger state into the storefront view for
// userID (empty for anonymous callers).
func (s *EntitlementService) Browse(ctx context.Context, userID, fileID string) (*Browse, error) {
	tr := otel.Tracer("services/EntitlementService")
	ctx, span := tr.Start(ctx, "Browse",
		trace.WithAttributes(
			attribute.String("user.id", userID),
			attribute.String("file.id", fileID),
		),
	)
	defer span.End()

	fileID = strings.TrimSpace(fileID)
	if fileID == "" {
		return nil, spanErr(span, ErrInvalidInput)
	}
	sctx, cancel := withStoreTimeout(ctx, s.StoreTimeout)
	defer cancel()

	file, err := loadFile(sctx, s.DB, fileID)
	if err != nil {
		return nil, spanErr(span, storeErr(sctx, err))
	}
	out := &Browse{FileID: file.ID, IsFree: file.IsFree, Authenticated: userID != ""}
	if userID != "" && !file.IsFree {
		active, err := repo.FindActiveByUserAndFile(sctx, s.DB, userID, fileID)
		switch {
		case errors.Is(err, repo.ErrNotFound):
		case err != nil:
			return nil, spanErr(span, storeErr(sctx, err))
		default:
			out.AlreadyApproved = active.Status == domain.PurchaseApproved
			out.HasPending = active.Status == domain.PurchasePending
		}
	}
	out.CanBuy = !out.IsFree && !out.AlreadyApproved && !out.HasPending
	return out, nil
}

// BrowseEntitlement resolves token and returns the storefront view of fileID.
// An empty token browses anonymously; an invalid one is rejected.
func (s *EntitlementService) BrowseEntitlement(ctx context.Context, fileID, token string) (*Browse, error) {
	userID := ""
	if strings.TrimSpace(token) != "" {
		if s.Identity == nil {
			return nil, ErrUnauthenticated
		}
		id, err := s.Identity.Resolve(ctx, token)
		if err != nil {
			return nil, err
		}
		userID = id.UserID
	}
	return s.Browse(ctx, userID, fileID)
}

// ListUserPurchases returns a page of userID's purchases and the total count.
func (s *EntitlementService) ListUserPurchases(ctx context.Context, userID string, page, pageSize int) ([]domain.Purchase, int64, error) {
	tr := otel.Tracer("services/EntitlementService")
	ctx, span := tr.Start(ctx, "ListUserPurchases",
		trace.WithAttributes(
			attribute.String("user.id", userID),
			attribute.Int("page", page),
			attribute.Int("page_size", pageSize),
		),
	)
	defer span.End()

	if userID == "" {
		return nil, 0, ErrUnauthenticated
	}
	page, pageSize = utils.ClampPage(page, pageSize)
	sctx, cancel := withStoreTimeout(ctx, s.StoreTimeout)
	defer cancel()

	total, err := repo.CountPurchasesByUser(sctx, s.DB, userID)
	if err != nil {
		return nil, 0, spanErr(span, storeErr(sctx, err))
	}
	if total == 0 {
		return []domain.Purchase{}, 0, nil
	}
	items, err := repo.ListPurchasesByUserPage(sctx, s.DB, userID, utils.Offset(page, pageSize), pageSize)
	if err != nil {
		return nil, 0, spanErr(span, storeErr(sctx, err))
	}
	return items, total, nil
}

// PurchasesStats returns the count and latest update time of userID's
// purchases, for conditional responses.
func (s *EntitlementService) PurchasesStats(ctx context.Context, userID string) (int64, *time.Time, error) {
	sctx, cancel := withStoreTimeout(ctx, s.StoreTimeout)
	defer cancel()
	n, at, err := repo.PurchasesStats(sctx, s.DB, userID)
	return n, at, storeErr(sctx, err)
}

// DownloadsStats summarises userID's download rows for conditional responses.
func (s *EntitlementService) DownloadsStats(ctx context.Context, userID string) (repo.DownloadStats, error) {
	if userID == "" {
		return repo.DownloadStats{}, ErrUnauthenticated
	}
	sctx, cancel := withStoreTimeout(ctx, s.StoreTimeout)
	defer cancel()
	st, err := repo.DownloadsStats(sctx, s.DB, userID)
	return st, storeErr(sctx, err)
}

// EnabledPaymentMethods returns the accepted payment tags in configuration
// order.
func (s *EntitlementService) EnabledPaymentMethods() []string {
	if s.PaymentMethods == nil {
		return []string{}
	}
	return s.PaymentMethods.List()
}

// ListAllPurchases is the admin ledger view, optionally filtered by status.
func (s *EntitlementService) ListAllPurchases(ctx context.Context, actor identity.Identity, status domain.PurchaseStatus, page, pageSize int) ([]domain.Purchase, int64, error) {
	tr := otel.Tracer("services/EntitlementService")
	ctx, span := tr.Start(ctx, "ListAllPurchases",
		trace.WithAttributes(
			attribute.String("status", string(status)),
			attribute.Int("page", page),
			attribute.Int("page_size", pageSize),
		),
	)
	defer span.End()

	if !actor.IsAdmin {
		return nil, 0, spanErr(span, ErrNotAuthorized)
	}
	if status != "" && !status.Valid() {
		return nil, 0, spanErr(span, ErrInvalidInput)
	}
	page, pageSize = utils.ClampPage(page, pageSize)
	sctx, cancel := withStoreTimeout(ctx, s.StoreTimeout)
	defer cancel()

	total, err := repo.CountPurchases(sctx, s.DB, status)
	if err != nil {
		return nil, 0, spanErr(span, storeErr(sctx, err))
	}
	if total == 0 {
		return []domain.Purchase{}, 0, nil
	}
	items, err := repo.ListPurchasesPage(sctx, s.DB, status, utils.Offset(page, pageSize), pageSize)
	if err != nil {
		return nil, 0, spanErr(span, storeErr(sctx, err))
	}
	return items, total, nil
}

// DownloadHistory returns userID's download accounting rows.
func (s *EntitlementService) DownloadHistory(ctx context.Context, userID string) ([]domain.DownloadRecord, error) {
	tr := otel.Tracer("services/EntitlementService")
	ctx, span := tr.Start(ctx, "DownloadHistory",
		trace.WithAttributes(attribute.String("user.id", userID)),
	)
	defer span.End()

	if userID == "" {
		return nil, ErrUnauthenticated
	}
	sctx, cancel := withStoreTimeout(ctx, s.StoreTimeout)
	defer cancel()

	out, err := repo.GetDownloadHistory(sctx, s.DB, userID)
	if err != nil {
		return nil, spanErr(span, storeErr(sctx, err))
	}
	return out, nil
}
