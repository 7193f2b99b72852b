package services

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"agency_tracker/internal/apperrors"
	"agency_tracker/internal/models"
	"agency_tracker/internal/repository"
	"agency_tracker/pkg/mailer"
)

var errBoom = errors.New("boom")

// memDB backs every fake repository below. Rows are stored by value and
// copied on read so services cannot mutate the store without calling Update.
type memDB struct {
	mu     sync.Mutex
	nextID uint
	writes int

	clients     map[uint]models.Client
	projects    map[uint]models.Project
	phases      map[uint]models.Phase
	tasks       map[uint]models.Task
	attachments map[uint]models.Attachment
	codes       []models.TrackingCode
	prefs       []models.NotificationPreference
	invoices    map[uint]models.Invoice
	lineItems   map[uint][]models.InvoiceLineItem
	taxRates    map[uint]models.TaxRate
	payments    map[uint]models.Payment
	refunds     map[uint]models.Refund

	notifications []models.Notification
	activityLogs  []models.ActivityLog

	takenNumbers map[string]bool
	// racedNumbers are claimed by a concurrent writer: NumberExists misses
	// them but Create conflicts.
	racedNumbers  map[string]bool
	lineItemErr   error
	invoiceDelErr error
	clientDelay   time.Duration
}

func newMemDB() *memDB {
	return &memDB{
		clients:      map[uint]models.Client{},
		projects:     map[uint]models.Project{},
		phases:       map[uint]models.Phase{},
		tasks:        map[uint]models.Task{},
		attachments:  map[uint]models.Attachment{},
		invoices:     map[uint]models.Invoice{},
		lineItems:    map[uint][]models.InvoiceLineItem{},
		taxRates:     map[uint]models.TaxRate{},
		payments:     map[uint]models.Payment{},
		refunds:      map[uint]models.Refund{},
		takenNumbers: map[string]bool{},
		racedNumbers: map[string]bool{},
	}
}

func (db *memDB) id() uint {
	db.nextID++
	return db.nextID
}

// Projects

type memProjects struct{ *memDB }

func (r memProjects) Create(_ context.Context, p *models.Project) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.writes++
	p.ID = r.id()
	r.projects[p.ID] = *p
	return nil
}

func (r memProjects) GetByID(_ context.Context, id uint) (*models.Project, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.projects[id]
	if !ok {
		return nil, apperrors.NotFound("project", id)
	}
	return &p, nil
}

func (r memProjects) GetByClientID(_ context.Context, clientID uint) ([]models.Project, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []models.Project
	for _, p := range r.projects {
		if p.ClientID != nil && *p.ClientID == clientID {
			out = append(out, p)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (r memProjects) Update(_ context.Context, p *models.Project) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.projects[p.ID]; !ok {
		return apperrors.NotFound("project", p.ID)
	}
	r.writes++
	r.projects[p.ID] = *p
	return nil
}

func (r memProjects) Delete(_ context.Context, id uint) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.projects[id]; !ok {
		return apperrors.NotFound("project", id)
	}
	r.writes++
	delete(r.projects, id)
	return nil
}

// Phases

type memPhases struct{ *memDB }

func (r memPhases) Create(_ context.Context, p *models.Phase, appendLast bool) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.projects[p.ProjectID]; !ok {
		return apperrors.NotFound("project", p.ProjectID)
	}
	r.writes++
	if appendLast {
		next := 0
		for _, existing := range r.phases {
			if existing.ProjectID == p.ProjectID && existing.SortOrder >= next {
				next = existing.SortOrder + 1
			}
		}
		p.SortOrder = next
	}
	p.ID = r.id()
	r.phases[p.ID] = *p
	return nil
}

func (r memPhases) GetByID(_ context.Context, id uint) (*models.Phase, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.phases[id]
	if !ok {
		return nil, apperrors.NotFound("phase", id)
	}
	return &p, nil
}

func (r memPhases) GetByProjectID(ctx context.Context, projectID uint) ([]models.Phase, error) {
	return r.GetByProjectIDs(ctx, []uint{projectID})
}

func (r memPhases) GetByProjectIDs(_ context.Context, projectIDs []uint) ([]models.Phase, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	want := map[uint]bool{}
	for _, id := range projectIDs {
		want[id] = true
	}
	var out []models.Phase
	for _, p := range r.phases {
		if want[p.ProjectID] {
			out = append(out, p)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].SortOrder != out[j].SortOrder {
			return out[i].SortOrder < out[j].SortOrder
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

func (r memPhases) Update(_ context.Context, p *models.Phase) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.phases[p.ID]; !ok {
		return apperrors.NotFound("phase", p.ID)
	}
	r.writes++
	r.phases[p.ID] = *p
	return nil
}

func (r memPhases) Delete(_ context.Context, id uint) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.writes++
	p, ok := r.phases[id]
	if !ok {
		return apperrors.NotFound("phase", id)
	}
	delete(r.phases, id)
	for tid, t := range r.tasks {
		if t.PhaseID == id {
			delete(r.tasks, tid)
		}
	}
	var rest []models.Phase
	for _, sib := range r.phases {
		if sib.ProjectID == p.ProjectID {
			rest = append(rest, sib)
		}
	}
	sort.Slice(rest, func(i, j int) bool {
		if rest[i].SortOrder != rest[j].SortOrder {
			return rest[i].SortOrder < rest[j].SortOrder
		}
		return rest[i].ID < rest[j].ID
	})
	for i, sib := range rest {
		sib.SortOrder = i
		r.phases[sib.ID] = sib
	}
	return nil
}

func (r memPhases) Reorder(_ context.Context, projectID uint, ids []uint) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.writes++
	for i, id := range ids {
		p, ok := r.phases[id]
		if !ok || p.ProjectID != projectID {
			return apperrors.NotFound("phase", id)
		}
		p.SortOrder = i
		r.phases[id] = p
	}
	return nil
}

// Tasks

type memTasks struct{ *memDB }

func (r memTasks) Create(_ context.Context, t *models.Task, appendLast bool) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.writes++
	if appendLast {
		next := 0
		for _, existing := range r.tasks {
			if existing.PhaseID == t.PhaseID && existing.SortOrder >= next {
				next = existing.SortOrder + 1
			}
		}
		t.SortOrder = next
	}
	t.ID = r.id()
	r.tasks[t.ID] = *t
	return nil
}

func (r memTasks) GetByID(_ context.Context, id uint) (*models.Task, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	t, ok := r.tasks[id]
	if !ok {
		return nil, apperrors.NotFound("task", id)
	}
	return &t, nil
}

func (r memTasks) GetByPhaseID(ctx context.Context, phaseID uint) ([]models.Task, error) {
	return r.GetByPhaseIDs(ctx, []uint{phaseID})
}

func (r memTasks) GetByPhaseIDs(_ context.Context, phaseIDs []uint) ([]models.Task, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	want := map[uint]bool{}
	for _, id := range phaseIDs {
		want[id] = true
	}
	var out []models.Task
	for _, t := range r.tasks {
		if want[t.PhaseID] {
			out = append(out, t)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].SortOrder != out[j].SortOrder {
			return out[i].SortOrder < out[j].SortOrder
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

func (r memTasks) Update(_ context.Context, t *models.Task) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.tasks[t.ID]; !ok {
		return apperrors.NotFound("task", t.ID)
	}
	r.writes++
	r.tasks[t.ID] = *t
	return nil
}

func (r memTasks) UpdateCompletion(_ context.Context, id uint, percentage int) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	t, ok := r.tasks[id]
	if !ok {
		return apperrors.NotFound("task", id)
	}
	r.writes++
	t.CompletionPercentage = percentage
	r.tasks[id] = t
	return nil
}

func (r memTasks) Delete(_ context.Context, id uint) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.writes++
	t, ok := r.tasks[id]
	if !ok {
		return apperrors.NotFound("task", id)
	}
	delete(r.tasks, id)
	var rest []models.Task
	for _, sib := range r.tasks {
		if sib.PhaseID == t.PhaseID {
			rest = append(rest, sib)
		}
	}
	sort.Slice(rest, func(i, j int) bool {
		if rest[i].SortOrder != rest[j].SortOrder {
			return rest[i].SortOrder < rest[j].SortOrder
		}
		return rest[i].ID < rest[j].ID
	})
	for i, sib := range rest {
		sib.SortOrder = i
		r.tasks[sib.ID] = sib
	}
	return nil
}

func (r memTasks) Reorder(_ context.Context, phaseID uint, ids []uint) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.writes++
	for i, id := range ids {
		t, ok := r.tasks[id]
		if !ok || t.PhaseID != phaseID {
			return apperrors.NotFound("task", id)
		}
		t.SortOrder = i
		r.tasks[id] = t
	}
	return nil
}

// Attachments

type memAttachments struct{ *memDB }

func (r memAttachments) Create(_ context.Context, a *models.Attachment) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.writes++
	a.ID = r.id()
	r.attachments[a.ID] = *a
	return nil
}

func (r memAttachments) GetByProjectID(_ context.Context, projectID uint) ([]models.Attachment, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []models.Attachment
	for _, a := range r.attachments {
		if a.ProjectID == projectID {
			out = append(out, a)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (r memAttachments) Delete(_ context.Context, projectID, id uint) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if a, ok := r.attachments[id]; !ok || a.ProjectID != projectID {
		return apperrors.NotFound("attachment", id)
	}
	r.writes++
	delete(r.attachments, id)
	return nil
}

// Tracking codes and preferences

type memCodes struct{ *memDB }

func (r memCodes) GetActiveByCode(_ context.Context, code string) (*models.TrackingCode, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, tc := range r.codes {
		if tc.Code == code && tc.IsActive {
			c := tc
			return &c, nil
		}
	}
	return nil, apperrors.NotFound("tracking code", nil)
}

func (r memCodes) GetActiveByProjectID(_ context.Context, projectID uint) (*models.TrackingCode, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, tc := range r.codes {
		if tc.ProjectID == projectID && tc.IsActive {
			c := tc
			return &c, nil
		}
	}
	return nil, apperrors.NotFound("tracking code", nil)
}

func (r memCodes) GetByProjectID(_ context.Context, projectID uint) ([]models.TrackingCode, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []models.TrackingCode
	for _, tc := range r.codes {
		if tc.ProjectID == projectID {
			out = append(out, tc)
		}
	}
	return out, nil
}

func (r memCodes) Rotate(_ context.Context, projectID uint, code string) (*models.TrackingCode, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.projects[projectID]; !ok {
		return nil, apperrors.NotFound("project", projectID)
	}
	for _, tc := range r.codes {
		if tc.Code == code {
			return nil, apperrors.Conflict("duplicate tracking code")
		}
	}
	r.writes++
	for i := range r.codes {
		if r.codes[i].ProjectID == projectID {
			r.codes[i].IsActive = false
		}
	}
	tc := models.TrackingCode{ID: r.id(), ProjectID: projectID, Code: code, IsActive: true}
	r.codes = append(r.codes, tc)
	return &tc, nil
}

type memPrefs struct{ *memDB }

func (r memPrefs) Upsert(_ context.Context, pref *models.NotificationPreference) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.writes++
	for i := range r.prefs {
		if r.prefs[i].TrackingCodeID == pref.TrackingCodeID && r.prefs[i].Email == pref.Email {
			r.prefs[i].OptedIn = pref.OptedIn
			pref.ID = r.prefs[i].ID
			return nil
		}
	}
	pref.ID = r.id()
	r.prefs = append(r.prefs, *pref)
	return nil
}

func (r memPrefs) GetOptedIn(_ context.Context, trackingCodeID uint) ([]models.NotificationPreference, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []models.NotificationPreference
	for _, p := range r.prefs {
		if p.TrackingCodeID == trackingCodeID && p.OptedIn {
			out = append(out, p)
		}
	}
	return out, nil
}

// Clients

type memClients struct{ *memDB }

func (r memClients) Create(_ context.Context, c *models.Client) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, existing := range r.clients {
		if existing.AuthUserID == c.AuthUserID {
			return apperrors.Conflict("duplicate client")
		}
	}
	r.writes++
	c.ID = r.id()
	r.clients[c.ID] = *c
	return nil
}

func (r memClients) GetByID(_ context.Context, id uint) (*models.Client, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.clients[id]
	if !ok {
		return nil, apperrors.NotFound("client", id)
	}
	return &c, nil
}

func (r memClients) GetByAuthUserID(ctx context.Context, authUserID string) (*models.Client, error) {
	return r.find(ctx, func(c models.Client) bool { return c.AuthUserID == authUserID })
}

func (r memClients) GetByWhatsAppNumber(ctx context.Context, phone string) (*models.Client, error) {
	return r.find(ctx, func(c models.Client) bool { return c.WhatsAppNumber == phone })
}

func (r memClients) find(ctx context.Context, match func(models.Client) bool) (*models.Client, error) {
	if r.clientDelay > 0 {
		select {
		case <-time.After(r.clientDelay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, c := range r.clients {
		if c.IsActive && match(c) {
			found := c
			return &found, nil
		}
	}
	return nil, apperrors.NotFound("client", nil)
}

// Invoices

type memInvoices struct{ *memDB }

func (r memInvoices) Create(_ context.Context, inv *models.Invoice) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.takenNumbers[inv.InvoiceNumber] || r.racedNumbers[inv.InvoiceNumber] {
		return apperrors.Conflict("duplicate invoice number")
	}
	r.writes++
	inv.ID = r.id()
	stored := *inv
	stored.LineItems = nil
	r.invoices[inv.ID] = stored
	r.takenNumbers[inv.InvoiceNumber] = true
	return nil
}

func (r memInvoices) GetByID(_ context.Context, id uint) (*models.Invoice, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	inv, ok := r.invoices[id]
	if !ok {
		return nil, apperrors.NotFound("invoice", id)
	}
	return &inv, nil
}

func (r memInvoices) NumberExists(_ context.Context, number string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.takenNumbers[number], nil
}

func (r memInvoices) List(_ context.Context, f repository.InvoiceFilter) ([]models.Invoice, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []models.Invoice
	for _, inv := range r.invoices {
		if f.ClientID != nil && inv.ClientID != *f.ClientID {
			continue
		}
		if f.ProjectID != nil && (inv.ProjectID == nil || *inv.ProjectID != *f.ProjectID) {
			continue
		}
		if f.Status != "" && inv.Status != f.Status {
			continue
		}
		out = append(out, inv)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (r memInvoices) Update(_ context.Context, inv *models.Invoice) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.invoices[inv.ID]; !ok {
		return apperrors.NotFound("invoice", inv.ID)
	}
	r.writes++
	stored := *inv
	stored.LineItems = nil
	r.invoices[inv.ID] = stored
	return nil
}

func (r memInvoices) Delete(_ context.Context, id uint) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.invoiceDelErr != nil {
		return r.invoiceDelErr
	}
	r.writes++
	delete(r.invoices, id)
	return nil
}

func (r memInvoices) MarkOverdue(_ context.Context, before time.Time) ([]models.Invoice, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []models.Invoice
	for id, inv := range r.invoices {
		if inv.DueDate == nil || !inv.DueDate.Before(before) {
			continue
		}
		if inv.Status != string(models.InvoiceSent) && inv.Status != string(models.InvoicePartiallyPaid) {
			continue
		}
		inv.Status = string(models.InvoiceOverdue)
		r.invoices[id] = inv
		out = append(out, inv)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

type memLineItems struct{ *memDB }

func (r memLineItems) CreateBatch(_ context.Context, items []models.InvoiceLineItem) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.lineItemErr != nil {
		return r.lineItemErr
	}
	r.writes++
	for i := range items {
		items[i].ID = r.id()
		r.lineItems[items[i].InvoiceID] = append(r.lineItems[items[i].InvoiceID], items[i])
	}
	return nil
}

func (r memLineItems) GetByInvoiceID(_ context.Context, invoiceID uint) ([]models.InvoiceLineItem, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]models.InvoiceLineItem(nil), r.lineItems[invoiceID]...), nil
}

func (r memLineItems) Replace(_ context.Context, invoiceID uint, items []models.InvoiceLineItem) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.writes++
	r.lineItems[invoiceID] = append([]models.InvoiceLineItem(nil), items...)
	return nil
}

func (r memLineItems) DeleteByInvoiceID(_ context.Context, invoiceID uint) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.writes++
	delete(r.lineItems, invoiceID)
	return nil
}

type memTaxRates struct{ *memDB }

func (r memTaxRates) Create(_ context.Context, rate *models.TaxRate) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.writes++
	rate.ID = r.id()
	r.taxRates[rate.ID] = *rate
	return nil
}

func (r memTaxRates) GetByID(_ context.Context, id uint) (*models.TaxRate, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	rate, ok := r.taxRates[id]
	if !ok {
		return nil, apperrors.NotFound("tax rate", id)
	}
	return &rate, nil
}

func (r memTaxRates) GetByName(_ context.Context, name string) (*models.TaxRate, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, rate := range r.taxRates {
		if rate.Name == name {
			found := rate
			return &found, nil
		}
	}
	return nil, apperrors.NotFound("tax rate", name)
}

func (r memTaxRates) List(_ context.Context, activeOnly bool) ([]models.TaxRate, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []models.TaxRate
	for _, rate := range r.taxRates {
		if activeOnly && !rate.IsActive {
			continue
		}
		out = append(out, rate)
	}
	return out, nil
}

func (r memTaxRates) Update(_ context.Context, rate *models.TaxRate) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.taxRates[rate.ID]; !ok {
		return apperrors.NotFound("tax rate", rate.ID)
	}
	r.writes++
	r.taxRates[rate.ID] = *rate
	return nil
}

// Payments and refunds

type memPayments struct{ *memDB }

func (r memPayments) Create(_ context.Context, p *models.Payment) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, existing := range r.payments {
		if sameRef(existing.ProcessorPaymentIntentID, p.ProcessorPaymentIntentID) ||
			sameRef(existing.ProcessorChargeID, p.ProcessorChargeID) {
			return apperrors.Conflict("duplicate payment")
		}
	}
	r.writes++
	p.ID = r.id()
	r.payments[p.ID] = *p
	return nil
}

func sameRef(a, b *string) bool {
	return a != nil && b != nil && *a == *b
}

func (r memPayments) GetByID(_ context.Context, id uint) (*models.Payment, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.payments[id]
	if !ok {
		return nil, apperrors.NotFound("payment", id)
	}
	return &p, nil
}

func (r memPayments) GetByProcessorIntentID(_ context.Context, intentID string) (*models.Payment, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, p := range r.payments {
		if p.ProcessorPaymentIntentID != nil && *p.ProcessorPaymentIntentID == intentID {
			found := p
			return &found, nil
		}
	}
	return nil, apperrors.NotFound("payment", intentID)
}

func (r memPayments) GetByInvoiceID(_ context.Context, invoiceID uint) ([]models.Payment, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []models.Payment
	for _, p := range r.payments {
		if p.InvoiceID == invoiceID {
			out = append(out, p)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (r memPayments) Update(_ context.Context, p *models.Payment) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.payments[p.ID]; !ok {
		return apperrors.NotFound("payment", p.ID)
	}
	r.writes++
	r.payments[p.ID] = *p
	return nil
}

func (r memPayments) SumSucceeded(_ context.Context, invoiceID uint) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var sum int64
	for _, p := range r.payments {
		if p.InvoiceID == invoiceID && p.Status == string(models.PaymentSucceeded) {
			sum += p.Amount
		}
	}
	return sum, nil
}

type memRefunds struct{ *memDB }

func (r memRefunds) Create(_ context.Context, ref *models.Refund) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.writes++
	ref.ID = r.id()
	r.refunds[ref.ID] = *ref
	return nil
}

func (r memRefunds) GetByID(_ context.Context, id uint) (*models.Refund, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	ref, ok := r.refunds[id]
	if !ok {
		return nil, apperrors.NotFound("refund", id)
	}
	return &ref, nil
}

func (r memRefunds) Update(_ context.Context, ref *models.Refund) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.refunds[ref.ID]; !ok {
		return apperrors.NotFound("refund", ref.ID)
	}
	r.writes++
	r.refunds[ref.ID] = *ref
	return nil
}

func (r memRefunds) SumSucceededByPayment(_ context.Context, paymentID uint) (int64, error) {
	return r.sum(func(ref models.Refund) bool { return ref.PaymentID == paymentID }), nil
}

func (r memRefunds) SumSucceededByInvoice(_ context.Context, invoiceID uint) (int64, error) {
	return r.sum(func(ref models.Refund) bool { return ref.InvoiceID == invoiceID }), nil
}

func (r memRefunds) sum(match func(models.Refund) bool) int64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	var sum int64
	for _, ref := range r.refunds {
		if match(ref) && ref.Status == string(models.RefundSucceeded) {
			sum += ref.Amount
		}
	}
	return sum
}

type memActivity struct{ *memDB }

func (r memActivity) CreateNotification(_ context.Context, n *models.Notification) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	n.ID = r.id()
	r.notifications = append(r.notifications, *n)
	return nil
}

func (r memActivity) CreateActivityLog(_ context.Context, entry *models.ActivityLog) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	entry.ID = r.id()
	r.activityLogs = append(r.activityLogs, *entry)
	return nil
}

// Side-effect recorders

type recordingSink struct {
	mu   sync.Mutex
	sent []Notification
	err  error
}

func (s *recordingSink) Notify(_ context.Context, n Notification) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return s.err
	}
	s.sent = append(s.sent, n)
	return nil
}

type logEntry struct {
	ProjectID uint
	EventType string
	Payload   map[string]interface{}
	ActorID   *uint
}

type recordingActivity struct {
	mu      sync.Mutex
	entries []logEntry
}

func (a *recordingActivity) Log(_ context.Context, projectID uint, eventType string, payload map[string]interface{}, actorID *uint) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.entries = append(a.entries, logEntry{ProjectID: projectID, EventType: eventType, Payload: payload, ActorID: actorID})
	return nil
}

type recordingCache struct {
	mu          sync.Mutex
	trees       map[uint]ProjectTree
	invalidated []uint
}

func newRecordingCache() *recordingCache {
	return &recordingCache{trees: map[uint]ProjectTree{}}
}

func (c *recordingCache) GetProjectTree(_ context.Context, projectID uint, dest interface{}) (bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	tree, ok := c.trees[projectID]
	if !ok {
		return false, nil
	}
	*dest.(*ProjectTree) = tree
	return true, nil
}

func (c *recordingCache) SetProjectTree(_ context.Context, projectID uint, tree interface{}, _ time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.trees[projectID] = *tree.(*ProjectTree)
	return nil
}

func (c *recordingCache) InvalidateProject(_ context.Context, projectID uint) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.trees, projectID)
	c.invalidated = append(c.invalidated, projectID)
	return nil
}

type recordingMail struct {
	mu     sync.Mutex
	sent   []mailer.Message
	failTo map[string]bool
}

func (m *recordingMail) Send(_ context.Context, msg mailer.Message) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failTo[msg.To] {
		return errBoom
	}
	m.sent = append(m.sent, msg)
	return nil
}

type recordingNotifier struct {
	events []PhaseCompletedEvent
	result PhaseNotifyResult
}

func (n *recordingNotifier) NotifyPhaseCompleted(_ context.Context, event PhaseCompletedEvent) PhaseNotifyResult {
	n.events = append(n.events, event)
	return n.result
}

type recordingWhatsApp struct {
	mu   sync.Mutex
	sent map[string][]string
	err  error
}

func (w *recordingWhatsApp) SendTextMessage(_ context.Context, phone, message string) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.err != nil {
		return w.err
	}
	if w.sent == nil {
		w.sent = map[string][]string{}
	}
	w.sent[phone] = append(w.sent[phone], message)
	return nil
}

// seed helpers write straight into the store and return the stored row.

func (db *memDB) addClient(authUserID string) models.Client {
	db.mu.Lock()
	defer db.mu.Unlock()
	c := models.Client{ID: db.id(), AuthUserID: authUserID, Name: "Client " + authUserID, Email: authUserID + "@example.com", IsActive: true}
	db.clients[c.ID] = c
	return c
}

func (db *memDB) addProject(clientID *uint, notify bool) models.Project {
	db.mu.Lock()
	defer db.mu.Unlock()
	p := models.Project{ID: db.id(), Title: "Website", Status: string(models.ProjectPublished), ClientID: clientID, NotificationsEnabled: notify}
	db.projects[p.ID] = p
	return p
}

func (db *memDB) addPhase(projectID uint, name string, status models.PhaseStatus) models.Phase {
	db.mu.Lock()
	defer db.mu.Unlock()
	order := 0
	for _, p := range db.phases {
		if p.ProjectID == projectID && p.SortOrder >= order {
			order = p.SortOrder + 1
		}
	}
	p := models.Phase{ID: db.id(), ProjectID: projectID, Name: name, Status: string(status), SortOrder: order}
	db.phases[p.ID] = p
	return p
}

func (db *memDB) addTask(phaseID uint, name string, percentage int) models.Task {
	db.mu.Lock()
	defer db.mu.Unlock()
	order := 0
	for _, t := range db.tasks {
		if t.PhaseID == phaseID && t.SortOrder >= order {
			order = t.SortOrder + 1
		}
	}
	t := models.Task{ID: db.id(), PhaseID: phaseID, Name: name, SortOrder: order, CompletionPercentage: percentage}
	db.tasks[t.ID] = t
	return t
}

func (db *memDB) addInvoice(inv models.Invoice) models.Invoice {
	db.mu.Lock()
	defer db.mu.Unlock()
	inv.ID = db.id()
	if inv.Currency == "" {
		inv.Currency = "USD"
	}
	db.invoices[inv.ID] = inv
	db.takenNumbers[inv.InvoiceNumber] = true
	return inv
}

func (db *memDB) invoice(id uint) models.Invoice {
	db.mu.Lock()
	defer db.mu.Unlock()
	return db.invoices[id]
}

func (db *memDB) writeCount() int {
	db.mu.Lock()
	defer db.mu.Unlock()
	return db.writes
}

func uintPtr(v uint) *uint           { return &v }
func int64Ptr(v int64) *int64        { return &v }
func strPtr(v string) *string        { return &v }
func floatPtr(v float64) *float64    { return &v }
func timePtr(v time.Time) *time.Time { return &v }

var testNow = time.Date(2026, 3, 14, 15, 30, 0, 0, time.UTC)

// fixture wires every service over one memDB with recorders in place of the
// outbound channels.
type fixture struct {
	db       *memDB
	sink     *recordingSink
	activity *recordingActivity
	cache    *recordingCache
	notifier *recordingNotifier

	billing   *billingService
	payments  *paymentService
	hierarchy *hierarchyService
	tracking  *trackingService
}

func newFixture() *fixture {
	db := newMemDB()
	f := &fixture{
		db:       db,
		sink:     &recordingSink{},
		activity: &recordingActivity{},
		cache:    newRecordingCache(),
		notifier: &recordingNotifier{result: PhaseNotifyResult{Success: true, Sent: 1}},
	}
	dispatcher := NewDispatcher(memInvoices{db}, f.sink, f.activity)

	f.billing = NewBillingService(memInvoices{db}, memLineItems{db}, memTaxRates{db}, memClients{db}, memProjects{db}, dispatcher).(*billingService)
	f.billing.now = func() time.Time { return testNow }
	f.billing.suffix = func() int { return 42 }

	f.payments = NewPaymentService(memPayments{db}, memRefunds{db}, memInvoices{db}, dispatcher).(*paymentService)
	f.payments.now = func() time.Time { return testNow }

	f.hierarchy = NewHierarchyService(memProjects{db}, memPhases{db}, memTasks{db}, memAttachments{db}, memCodes{db}, f.notifier, f.activity, f.cache).(*hierarchyService)
	f.hierarchy.now = func() time.Time { return testNow }

	f.tracking = NewTrackingService(memCodes{db}, memProjects{db}, memPhases{db}, memTasks{db}, memAttachments{db}, f.cache, time.Minute).(*trackingService)
	return f
}
