package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/url"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/noah-isme/course-enrollment-api/internal/dto"
	"github.com/noah-isme/course-enrollment-api/internal/models"
	appErrors "github.com/noah-isme/course-enrollment-api/pkg/errors"
	"github.com/noah-isme/course-enrollment-api/pkg/money"
)

type checkoutPreEnrollmentRepository interface {
	FindByID(ctx context.Context, id string) (*models.PreEnrollment, error)
}

type checkoutEnrollmentRepository interface {
	FindByID(ctx context.Context, id string) (*models.Enrollment, error)
	FindByPreEnrollmentID(ctx context.Context, preEnrollmentID string) (*models.Enrollment, error)
	UpdateCheckoutAmount(ctx context.Context, id string, amount decimal.Decimal, gatewayID string) error
}

type checkoutCourseRepository interface {
	FindByID(ctx context.Context, id string) (*models.Course, error)
}

type checkoutPaymentRepository interface {
	FindByID(ctx context.Context, id string) (*models.Payment, error)
	FindActive(ctx context.Context, kind models.PaymentKind, subjectID string) (*models.Payment, error)
	Create(ctx context.Context, payment *models.Payment) error
	TransitionStatus(ctx context.Context, id string, from, to models.PaymentStatus, paidAt *time.Time) (bool, error)
}

type checkoutSettingsLoader interface {
	LoadForCheckout(ctx context.Context) (models.PaymentSettings, error)
}

type enrollmentDiscountResolver interface {
	Resolve(ctx context.Context, course *models.Course, pre *models.PreEnrollment, override *decimal.Decimal) (*DiscountResult, error)
	Preview(ctx context.Context, course *models.Course, pre *models.PreEnrollment) (*DiscountResult, error)
}

type checkoutGateway interface {
	CreateCheckout(ctx context.Context, settings models.PaymentSettings, spec CheckoutSpec) (*GatewaySession, error)
}

type checkoutLocker interface {
	Acquire(ctx context.Context, key string, ttl time.Duration) (func(), bool, error)
}

type callbackTokens interface {
	Generate(paymentID, kind string) (string, time.Time, error)
	Parse(token string) (string, string, time.Time, error)
}

// CheckoutConfig tunes amount and reuse decisions.
type CheckoutConfig struct {
	MinimumCharge   decimal.Decimal
	ReuseTolerance  decimal.Decimal
	LockTTL         time.Duration
	CallbackBaseURL string
}

// CheckoutDependencies groups the collaborators of the checkout orchestrator.
type CheckoutDependencies struct {
	PreEnrollments checkoutPreEnrollmentRepository
	Enrollments    checkoutEnrollmentRepository
	Courses        checkoutCourseRepository
	Payments       checkoutPaymentRepository
	Settings       checkoutSettingsLoader
	Resolver       enrollmentDiscountResolver
	Gateway        checkoutGateway
	Locks          checkoutLocker
	Tokens         callbackTokens
	Audit          auditRecorder
}

// CheckoutService creates or reuses gateway checkouts for pre-enrollment and enrollment fees.
type CheckoutService struct {
	deps      CheckoutDependencies
	config    CheckoutConfig
	validator *validator.Validate
	metrics   *MetricsService
	logger    *zap.Logger
}

// NewCheckoutService constructs the orchestrator.
func NewCheckoutService(deps CheckoutDependencies, cfg CheckoutConfig, validate *validator.Validate, metrics *MetricsService, logger *zap.Logger) *CheckoutService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if deps.Audit == nil {
		deps.Audit = noopAuditRecorder{}
	}
	cfg.MinimumCharge = money.Round(cfg.MinimumCharge)
	if cfg.LockTTL <= 0 {
		cfg.LockTTL = 15 * time.Second
	}
	return &CheckoutService{deps: deps, config: cfg, validator: validate, metrics: metrics, logger: logger}
}

type checkoutSubject struct {
	kind       models.PaymentKind
	pre        *models.PreEnrollment
	enrollment *models.Enrollment
	course     *models.Course
}

func (s checkoutSubject) id() string {
	if s.kind == models.PaymentKindEnrollment {
		return s.enrollment.ID
	}
	return s.pre.ID
}

// CreateOrReuse returns the checkout the student should pay, creating one only when no
// active checkout can be reused.
func (s *CheckoutService) CreateOrReuse(ctx context.Context, actor *models.JWTClaims, kind models.PaymentKind, req dto.CheckoutRequest) (*dto.CheckoutResponse, error) {
	if actor == nil {
		return nil, appErrors.ErrUnauthorized
	}
	if !kind.Valid() {
		return nil, appErrors.Clone(appErrors.ErrValidation, "unknown checkout kind")
	}
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid checkout payload")
	}
	if (req.OverrideAmount.Set || req.ForceRecalculate) && !actor.Role.Administrative() {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "override_amount and force_recalculate require an administrator")
	}
	if req.OverrideAmount.Set && req.OverrideAmount.Value.IsNegative() {
		return nil, appErrors.Clone(appErrors.ErrValidation, "override_amount must be positive")
	}

	subject, err := s.loadSubject(ctx, actor, kind, req)
	if err != nil {
		s.metrics.RecordCheckout(string(kind), CheckoutOutcomeRejected)
		return nil, err
	}

	settings, err := s.deps.Settings.LoadForCheckout(ctx)
	if err != nil {
		return nil, err
	}

	lockKey := fmt.Sprintf("checkout:lock:%s:%s", kind, subject.id())
	release, acquired, err := s.deps.Locks.Acquire(ctx, lockKey, s.config.LockTTL)
	if err != nil {
		s.logger.Warn("checkout lock unavailable, continuing without it", zap.String("key", lockKey), zap.Error(err))
		release, acquired = func() {}, true
	}
	if !acquired {
		s.metrics.RecordCheckout(string(kind), CheckoutOutcomeRejected)
		return nil, appErrors.Clone(appErrors.ErrCheckoutInProgress, "")
	}
	defer release()

	var override *decimal.Decimal
	if req.OverrideAmount.Set {
		value := req.OverrideAmount.Value
		override = &value
	}
	decision, err := s.price(ctx, subject, override)
	if err != nil {
		return nil, err
	}

	existing, err := s.deps.Payments.FindActive(ctx, kind, subject.id())
	if err != nil {
		if !errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load active checkout")
		}
		existing = nil
	}

	reuse, why := s.decide(subject, existing, decision, override != nil, req.ForceRecalculate)
	logFields := []zap.Field{
		zap.String("kind", string(kind)),
		zap.String("subject_id", subject.id()),
		zap.String("actor_id", actor.UserID),
		zap.String("decision", why),
		zap.Stringer("target_amount", decision.Amount),
		zap.String("reason", decision.Reason),
	}
	if existing != nil {
		logFields = append(logFields, zap.String("existing_payment_id", existing.ID), zap.Stringer("existing_amount", existing.Amount))
	}

	if reuse {
		s.logger.Info("reusing active checkout", logFields...)
		s.syncEnrollmentAmount(ctx, subject, existing)
		s.deps.Audit.Record(s.auditEntry(actor, models.AuditActionCheckoutReused, existing, why))
		s.metrics.RecordCheckout(string(kind), CheckoutOutcomeReused)
		return s.response(existing, decision, settings, true, ""), nil
	}

	cancelledID := ""
	outcome := CheckoutOutcomeCreated
	if existing != nil {
		if err := s.cancel(ctx, actor, existing, why); err != nil {
			return nil, err
		}
		cancelledID = existing.ID
		outcome = CheckoutOutcomeRecreated
	}

	s.logger.Info("creating checkout", logFields...)
	payment, err := s.create(ctx, subject, settings, decision)
	if err != nil {
		if appErrors.FromError(err).Code == appErrors.ErrUpstreamGateway.Code {
			s.metrics.RecordCheckout(string(kind), CheckoutOutcomeGatewayErr)
		}
		return nil, err
	}
	s.deps.Audit.Record(s.auditEntry(actor, models.AuditActionCheckoutCreated, payment, why))
	s.metrics.RecordCheckout(string(kind), outcome)
	return s.response(payment, decision, settings, false, cancelledID), nil
}

// Return resolves the signed token carried by gateway redirect URLs into the payment status.
func (s *CheckoutService) Return(ctx context.Context, token string) (*dto.CheckoutReturnResponse, error) {
	paymentID, kind, _, err := s.deps.Tokens.Parse(token)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrUnauthorized.Code, appErrors.ErrUnauthorized.Status, "invalid or expired checkout token")
	}
	payment, err := s.deps.Payments.FindByID(ctx, paymentID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "payment not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load payment")
	}
	if string(payment.Kind) != kind {
		return nil, appErrors.Clone(appErrors.ErrUnauthorized, "invalid or expired checkout token")
	}
	return &dto.CheckoutReturnResponse{
		PaymentID: payment.ID,
		Kind:      string(payment.Kind),
		Status:    string(payment.Status),
		Amount:    money.Float(payment.Amount),
		Paid:      payment.Status.Settled(),
	}, nil
}

// PreviewDiscount runs the enrollment amount decision without side effects.
func (s *CheckoutService) PreviewDiscount(ctx context.Context, preEnrollmentID string) (*dto.DiscountPreviewResponse, error) {
	pre, err := s.deps.PreEnrollments.FindByID(ctx, preEnrollmentID)
	if err != nil {
		return nil, notFoundOrInternal(err, "pre-enrollment not found", "failed to load pre-enrollment")
	}
	course, err := s.deps.Courses.FindByID(ctx, pre.CourseID)
	if err != nil {
		return nil, notFoundOrInternal(err, "course not found", "failed to load course")
	}
	result, err := s.deps.Resolver.Preview(ctx, course, pre)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to resolve discount")
	}
	return &dto.DiscountPreviewResponse{
		PreEnrollmentID:   pre.ID,
		CourseID:          course.ID,
		OriginalAmount:    money.Float(result.OriginalFee),
		AppliedAmount:     money.Float(result.Amount),
		Reason:            result.Reason,
		PaidTotal:         money.Float(result.PaidTotal),
		DBCandidate:       money.FloatPtr(result.DBCandidate),
		PaymentsCandidate: money.FloatPtr(result.PaymentsCandidate),
		HealPending:       result.HealPending,
		MinimumCharge:     money.Float(s.config.MinimumCharge),
	}, nil
}

func (s *CheckoutService) loadSubject(ctx context.Context, actor *models.JWTClaims, kind models.PaymentKind, req dto.CheckoutRequest) (checkoutSubject, error) {
	subject := checkoutSubject{kind: kind}
	admin := actor.Role.Administrative()

	pre, err := s.deps.PreEnrollments.FindByID(ctx, req.PreEnrollmentID)
	if err != nil {
		return subject, notFoundOrInternal(err, "pre-enrollment not found", "failed to load pre-enrollment")
	}
	if !admin && pre.UserID != actor.UserID {
		return subject, appErrors.Clone(appErrors.ErrForbidden, "pre-enrollment belongs to another user")
	}
	subject.pre = pre

	course, err := s.deps.Courses.FindByID(ctx, pre.CourseID)
	if err != nil {
		return subject, notFoundOrInternal(err, "course not found", "failed to load course")
	}
	subject.course = course

	if kind == models.PaymentKindPreEnrollment {
		if pre.Status.FeePaid() {
			return subject, appErrors.Clone(appErrors.ErrConflict, "pre-enrollment fee is already paid")
		}
		return subject, nil
	}

	var enrollment *models.Enrollment
	if req.EnrollmentID != "" {
		enrollment, err = s.deps.Enrollments.FindByID(ctx, req.EnrollmentID)
	} else {
		enrollment, err = s.deps.Enrollments.FindByPreEnrollmentID(ctx, pre.ID)
	}
	if err != nil {
		return subject, notFoundOrInternal(err, "enrollment not found", "failed to load enrollment")
	}
	if enrollment.PreEnrollmentID != pre.ID {
		return subject, appErrors.Clone(appErrors.ErrValidation, "enrollment does not belong to the pre-enrollment")
	}
	if !admin && enrollment.UserID != actor.UserID {
		return subject, appErrors.Clone(appErrors.ErrForbidden, "enrollment belongs to another user")
	}
	if enrollment.PaymentStatus == models.EnrollmentPaymentPaid {
		return subject, appErrors.Clone(appErrors.ErrConflict, "enrollment fee is already paid")
	}
	subject.enrollment = enrollment
	return subject, nil
}

func (s *CheckoutService) price(ctx context.Context, subject checkoutSubject, override *decimal.Decimal) (*DiscountResult, error) {
	if subject.kind == models.PaymentKindEnrollment {
		result, err := s.deps.Resolver.Resolve(ctx, subject.course, subject.pre, override)
		if err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to resolve enrollment amount")
		}
		return result, nil
	}

	fee := money.Round(subject.course.PreEnrollmentFee)
	result := &DiscountResult{OriginalFee: fee, Amount: money.Floor(fee, s.config.MinimumCharge), Reason: ReasonPreEnrollmentFee}
	if override != nil && override.IsPositive() {
		result.Amount = money.Floor(money.Round(*override), s.config.MinimumCharge)
		result.Reason = ReasonOverrideAmount
	}
	return result, nil
}

// decide reports whether the active checkout can be reused, and a short tag explaining why.
func (s *CheckoutService) decide(subject checkoutSubject, existing *models.Payment, decision *DiscountResult, override, force bool) (bool, string) {
	tol := s.config.ReuseTolerance
	switch {
	case existing == nil:
		return false, "no_active_checkout"
	case existing.CheckoutURL == nil || *existing.CheckoutURL == "":
		return false, "missing_checkout_url"
	case override:
		if money.Within(existing.Amount, decision.Amount, tol) {
			return true, "override_matches_active"
		}
		return false, "override_changed_amount"
	case force:
		return false, "force_recalculate"
	case subject.kind == models.PaymentKindEnrollment && decision.HasCredit() &&
		money.Within(existing.Amount, decision.OriginalFee, tol) && !money.Within(existing.Amount, decision.Amount, tol):
		return false, "stale_full_price"
	default:
		return true, "active_checkout"
	}
}

func (s *CheckoutService) cancel(ctx context.Context, actor *models.JWTClaims, existing *models.Payment, why string) error {
	changed, err := s.deps.Payments.TransitionStatus(ctx, existing.ID, existing.Status, models.PaymentStatusCancelled, nil)
	if err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to cancel active checkout")
	}
	if !changed {
		current, err := s.deps.Payments.FindByID(ctx, existing.ID)
		if err == nil && current.Status.Settled() {
			return appErrors.Clone(appErrors.ErrConflict, "active checkout was paid while recalculating")
		}
	}
	s.logger.Info("cancelled active checkout", zap.String("payment_id", existing.ID), zap.Stringer("amount", existing.Amount), zap.String("decision", why))
	s.deps.Audit.Record(s.auditEntry(actor, models.AuditActionCheckoutCancelled, existing, why))
	return nil
}

func (s *CheckoutService) create(ctx context.Context, subject checkoutSubject, settings models.PaymentSettings, decision *DiscountResult) (*models.Payment, error) {
	paymentID := uuid.NewString()
	success, cancel, expired, err := s.callbackURLs(paymentID, subject.kind)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to sign callback urls")
	}

	label := "Matrícula"
	if subject.kind == models.PaymentKindPreEnrollment {
		label = "Pré-matrícula"
	}
	pre := subject.pre
	spec := CheckoutSpec{
		Kind:              subject.kind,
		Amount:            decision.Amount,
		ItemName:          label + " " + subject.course.Name,
		ItemDescription:   fmt.Sprintf("%s - %s", label, subject.course.Name),
		ExternalReference: subject.id(),
		Customer: CheckoutCustomer{
			Name:          pre.FullName,
			Document:      pre.CPF,
			Email:         pre.Email,
			Phone:         pre.Phone,
			Address:       pre.Address,
			AddressNumber: pre.AddressNumber,
			PostalCode:    pre.PostalCode,
			Province:      pre.Neighborhood,
			City:          pre.City,
		},
		SuccessURL: success,
		CancelURL:  cancel,
		ExpiredURL: expired,
	}

	session, err := s.deps.Gateway.CreateCheckout(ctx, settings, spec)
	if err != nil {
		return nil, err
	}

	payment := &models.Payment{
		ID:              paymentID,
		Kind:            subject.kind,
		Amount:          decision.Amount,
		Status:          models.PaymentStatusPending,
		AsaasPaymentID:  &session.ID,
		CheckoutURL:     &session.URL,
		PreEnrollmentID: pre.ID,
	}
	if subject.kind == models.PaymentKindEnrollment {
		enrollmentID := subject.enrollment.ID
		payment.EnrollmentID = &enrollmentID
	}
	if err := s.deps.Payments.Create(ctx, payment); err != nil {
		s.logger.Error("gateway checkout created but payment row not stored",
			zap.String("gateway_id", session.ID), zap.String("subject_id", subject.id()), zap.Error(err))
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to store payment")
	}

	if subject.kind == models.PaymentKindEnrollment {
		if err := s.deps.Enrollments.UpdateCheckoutAmount(ctx, subject.enrollment.ID, payment.Amount, session.ID); err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to store enrollment amount")
		}
	}
	return payment, nil
}

// syncEnrollmentAmount keeps enrollment_amount aligned with a reused checkout.
func (s *CheckoutService) syncEnrollmentAmount(ctx context.Context, subject checkoutSubject, payment *models.Payment) {
	if subject.kind != models.PaymentKindEnrollment {
		return
	}
	current := subject.enrollment.EnrollmentAmount
	if current != nil && money.Round(*current).Equal(money.Round(payment.Amount)) {
		return
	}
	gatewayID := ""
	if payment.AsaasPaymentID != nil {
		gatewayID = *payment.AsaasPaymentID
	}
	if err := s.deps.Enrollments.UpdateCheckoutAmount(ctx, subject.enrollment.ID, payment.Amount, gatewayID); err != nil {
		s.logger.Warn("failed to sync enrollment amount", zap.String("enrollment_id", subject.enrollment.ID), zap.Error(err))
	}
}

func (s *CheckoutService) callbackURLs(paymentID string, kind models.PaymentKind) (success, cancel, expired string, err error) {
	token, _, err := s.deps.Tokens.Generate(paymentID, string(kind))
	if err != nil {
		return "", "", "", err
	}
	build := func(result string) string {
		q := url.Values{}
		q.Set("result", result)
		q.Set("token", token)
		return s.config.CallbackBaseURL + "/checkout/return?" + q.Encode()
	}
	return build("success"), build("cancel"), build("expired"), nil
}

func (s *CheckoutService) response(payment *models.Payment, decision *DiscountResult, settings models.PaymentSettings, reused bool, cancelledID string) *dto.CheckoutResponse {
	resp := &dto.CheckoutResponse{
		PaymentID:          payment.ID,
		Kind:               string(payment.Kind),
		AppliedAmount:      money.Float(payment.Amount),
		OriginalAmount:     money.Float(decision.OriginalFee),
		Reason:             decision.Reason,
		Reused:             reused,
		PaidTotal:          money.Float(decision.PaidTotal),
		DBCandidate:        money.FloatPtr(decision.DBCandidate),
		PaymentsCandidate:  money.FloatPtr(decision.PaymentsCandidate),
		CancelledPaymentID: cancelledID,
		Environment:        string(settings.Environment),
	}
	if payment.CheckoutURL != nil {
		resp.CheckoutURL = *payment.CheckoutURL
	}
	if payment.AsaasPaymentID != nil {
		resp.CheckoutID = *payment.AsaasPaymentID
	}
	return resp
}

func (s *CheckoutService) auditEntry(actor *models.JWTClaims, action string, payment *models.Payment, why string) models.AuditLog {
	userID := actor.UserID
	paymentID := payment.ID
	return models.AuditLog{
		UserID:     &userID,
		Action:     action,
		Resource:   "payment",
		ResourceID: &paymentID,
		NewValues: auditJSON(map[string]interface{}{
			"kind":       payment.Kind,
			"amount":     money.Float(payment.Amount),
			"status":     payment.Status,
			"subject_id": payment.SubjectID(),
			"decision":   why,
		}),
	}
}

func notFoundOrInternal(err error, notFound, internal string) error {
	if errors.Is(err, sql.ErrNoRows) {
		return appErrors.Clone(appErrors.ErrNotFound, notFound)
	}
	return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, internal)
}
