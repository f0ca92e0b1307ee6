package services

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/coursehub/progress-service/internal/models"
	"go.uber.org/zap"
)

type completionKey struct {
	studentID int
	sectionID int
}

// completionRow is a ledger entry; txID is non-zero until the owning transaction commits
type completionRow struct {
	at   time.Time
	txID int
}

type txKey struct{}

// memStore is an in-memory stand-in for the relational store.
// Completions recorded inside a transaction stay invisible to other transactions until it commits.
// WithinTx restores a snapshot of the other tables when fn fails, which is only correct while one
// transaction runs at a time or while concurrent transactions succeed.
type memStore struct {
	mu sync.Mutex

	courses      map[int]*models.Course
	sections     map[int]models.SectionLocation
	enrolled     map[models.ProgressKey]bool
	completions  map[completionKey]completionRow
	progress     map[models.ProgressKey]*models.ProgressRecord
	certificates map[models.ProgressKey]*models.Certificate
	numbers      map[string]bool

	nextTxID          int
	nextProgressID    int
	nextCertificateID int

	// fault injection
	errRecordCompletion  error
	errCreateCertificate error
	errTotalSections     error
	errListUnsettled     error
	conflictsLeft        int
	failProgressFor      map[models.ProgressKey]error

	// afterCompletedCount runs after GetCompletedCount has read, outside the store mutex
	afterCompletedCount func(ctx context.Context)

	txCount int
}

func newMemStore() *memStore {
	return &memStore{
		courses:         map[int]*models.Course{},
		sections:        map[int]models.SectionLocation{},
		enrolled:        map[models.ProgressKey]bool{},
		completions:     map[completionKey]completionRow{},
		progress:        map[models.ProgressKey]*models.ProgressRecord{},
		certificates:    map[models.ProgressKey]*models.Certificate{},
		numbers:         map[string]bool{},
		failProgressFor: map[models.ProgressKey]error{},
	}
}

// addCourse registers a course with one chapter holding sectionCount sections numbered from firstSectionID
func (m *memStore) addCourse(courseID, firstSectionID, sectionCount int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.courses[courseID] = &models.Course{ID: courseID, Title: fmt.Sprintf("Course %d", courseID), Status: models.CourseStatusPublished}
	for i := 0; i < sectionCount; i++ {
		id := firstSectionID + i
		m.sections[id] = models.SectionLocation{SectionID: id, ChapterID: courseID * 10, CourseID: courseID}
	}
}

func (m *memStore) enroll(studentID, courseID int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.enrolled[models.ProgressKey{StudentID: studentID, CourseID: courseID}] = true
}

func (m *memStore) progressOf(studentID, courseID int) *models.ProgressRecord {
	m.mu.Lock()
	defer m.mu.Unlock()
	record, ok := m.progress[models.ProgressKey{StudentID: studentID, CourseID: courseID}]
	if !ok {
		return nil
	}
	copied := *record
	return &copied
}

func (m *memStore) completionCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.completions)
}

func (m *memStore) certificateCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.certificates)
}

type memSnapshot struct {
	progress     map[models.ProgressKey]models.ProgressRecord
	certificates map[models.ProgressKey]*models.Certificate
	numbers      map[string]bool
}

func (m *memStore) snapshot() memSnapshot {
	m.mu.Lock()
	defer m.mu.Unlock()
	snap := memSnapshot{
		progress:     map[models.ProgressKey]models.ProgressRecord{},
		certificates: map[models.ProgressKey]*models.Certificate{},
		numbers:      map[string]bool{},
	}
	for k, v := range m.progress {
		snap.progress[k] = *v
	}
	for k, v := range m.certificates {
		snap.certificates[k] = v
	}
	for k, v := range m.numbers {
		snap.numbers[k] = v
	}
	return snap
}

func (m *memStore) restore(snap memSnapshot) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.progress = map[models.ProgressKey]*models.ProgressRecord{}
	for k, v := range snap.progress {
		record := v
		m.progress[k] = &record
	}
	m.certificates = snap.certificates
	m.numbers = snap.numbers
}

// TxManager

func (m *memStore) WithinTx(ctx context.Context, fn func(ctx context.Context) error) error {
	if _, ok := ctx.Value(txKey{}).(int); ok {
		return fn(ctx)
	}

	m.mu.Lock()
	m.txCount++
	m.nextTxID++
	txID := m.nextTxID
	m.mu.Unlock()

	snap := m.snapshot()
	if err := fn(context.WithValue(ctx, txKey{}, txID)); err != nil {
		m.restore(snap)
		m.settle(txID, false)
		return err
	}
	m.settle(txID, true)
	return nil
}

// settle publishes the completions of a transaction on commit and drops them on rollback
func (m *memStore) settle(txID int, commit bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for key, row := range m.completions {
		if row.txID != txID {
			continue
		}
		if commit {
			row.txID = 0
			m.completions[key] = row
		} else {
			delete(m.completions, key)
		}
	}
}

// visible reports whether a completion row can be read from ctx
func visible(ctx context.Context, row completionRow) bool {
	if row.txID == 0 {
		return true
	}
	txID, _ := ctx.Value(txKey{}).(int)
	return txID == row.txID
}

// EnrollmentGate

func (m *memStore) IsCourseEnrolledForStudent(ctx context.Context, studentID, courseID int) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.enrolled[models.ProgressKey{StudentID: studentID, CourseID: courseID}], nil
}

// memContent implements ContentRepository
type memContent struct{ *memStore }

func (c memContent) GetCourseByID(ctx context.Context, courseID int) (*models.Course, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	course, ok := c.courses[courseID]
	if !ok {
		return nil, fmt.Errorf("course %d: %w", courseID, models.ErrNotFound)
	}
	return course, nil
}

func (c memContent) GetTotalSectionCount(ctx context.Context, courseID int) (int, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.errTotalSections != nil {
		return 0, c.errTotalSections
	}
	total := 0
	for _, loc := range c.sections {
		if loc.CourseID == courseID {
			total++
		}
	}
	return total, nil
}

func (c memContent) GetStructure(ctx context.Context, courseID int) (*models.CourseStructure, error) {
	course, err := c.GetCourseByID(ctx, courseID)
	if err != nil {
		return nil, err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	chapter := models.Chapter{ID: courseID * 10, CourseID: courseID, Title: "Chapter", Order: 1}
	ids := []int{}
	for id, loc := range c.sections {
		if loc.CourseID == courseID {
			ids = append(ids, id)
		}
	}
	sort.Ints(ids)
	for i, id := range ids {
		chapter.Sections = append(chapter.Sections, models.Section{ID: id, ChapterID: chapter.ID, Order: i + 1, Kind: models.ContentKindReading})
	}
	structure := &models.CourseStructure{Course: *course}
	if len(ids) > 0 {
		structure.Chapters = []models.Chapter{chapter}
	}
	return structure, nil
}

func (c memContent) GetSectionLocation(ctx context.Context, sectionID int) (*models.SectionLocation, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	loc, ok := c.sections[sectionID]
	if !ok {
		return nil, fmt.Errorf("section %d: %w", sectionID, models.ErrNotFound)
	}
	return &loc, nil
}

// memLedger implements CompletionLedger
type memLedger struct{ *memStore }

func (l memLedger) RecordCompletion(ctx context.Context, studentID, sectionID int) (bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.errRecordCompletion != nil {
		return false, l.errRecordCompletion
	}
	key := completionKey{studentID: studentID, sectionID: sectionID}
	if _, ok := l.completions[key]; ok {
		return false, nil
	}
	txID, _ := ctx.Value(txKey{}).(int)
	l.completions[key] = completionRow{at: time.Now(), txID: txID}
	return true, nil
}

func (l memLedger) GetCompletedCount(ctx context.Context, studentID, courseID int) (int, error) {
	ids, err := l.ListCompletedSectionIDs(ctx, studentID, courseID)
	if hook := l.afterCompletedCount; hook != nil {
		hook(ctx)
	}
	return len(ids), err
}

func (l memLedger) IsCompleted(ctx context.Context, studentID, sectionID int) (bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	row, ok := l.completions[completionKey{studentID: studentID, sectionID: sectionID}]
	return ok && visible(ctx, row), nil
}

func (l memLedger) ListCompletedSectionIDs(ctx context.Context, studentID, courseID int) ([]int, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	ids := []int{}
	for key, row := range l.completions {
		if key.studentID != studentID || !visible(ctx, row) {
			continue
		}
		if loc, ok := l.sections[key.sectionID]; ok && loc.CourseID == courseID {
			ids = append(ids, key.sectionID)
		}
	}
	sort.Ints(ids)
	return ids, nil
}

// memProgress implements ProgressRepository and UnsettledProgressLister
type memProgress struct{ *memStore }

func (p memProgress) GetOrCreate(ctx context.Context, studentID, courseID int) (*models.ProgressRecord, error) {
	p.mu.Lock()
	key := models.ProgressKey{StudentID: studentID, CourseID: courseID}
	if err := p.failProgressFor[key]; err != nil {
		p.mu.Unlock()
		return nil, err
	}
	if _, ok := p.progress[key]; !ok {
		p.nextProgressID++
		now := time.Now().UTC()
		p.progress[key] = &models.ProgressRecord{
			ID:        p.nextProgressID,
			StudentID: studentID,
			CourseID:  courseID,
			Status:    models.ProgressStatusNotStarted,
			StartedAt: now,
			UpdatedAt: now,
		}
	}
	p.mu.Unlock()
	return p.Get(ctx, studentID, courseID)
}

func (p memProgress) Get(ctx context.Context, studentID, courseID int) (*models.ProgressRecord, error) {
	record := p.progressOf(studentID, courseID)
	if record == nil {
		return nil, fmt.Errorf("progress: %w", models.ErrNotFound)
	}
	return record, nil
}

func (p memProgress) GetForUpdate(ctx context.Context, studentID, courseID int) (*models.ProgressRecord, error) {
	p.mu.Lock()
	if p.conflictsLeft > 0 {
		p.conflictsLeft--
		p.mu.Unlock()
		return nil, fmt.Errorf("lock wait: %w", models.ErrConcurrencyConflict)
	}
	p.mu.Unlock()
	return p.Get(ctx, studentID, courseID)
}

func (p memProgress) Update(ctx context.Context, record *models.ProgressRecord) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	key := models.ProgressKey{StudentID: record.StudentID, CourseID: record.CourseID}
	if _, ok := p.progress[key]; !ok {
		return fmt.Errorf("progress: %w", models.ErrNotFound)
	}
	copied := *record
	p.progress[key] = &copied
	return nil
}

func (p memProgress) ListByStudent(ctx context.Context, studentID int) ([]models.ProgressRecord, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	records := []models.ProgressRecord{}
	for key, record := range p.progress {
		if key.StudentID == studentID {
			records = append(records, *record)
		}
	}
	sort.Slice(records, func(i, j int) bool { return records[i].CourseID < records[j].CourseID })
	return records, nil
}

func (p memProgress) ListUnsettled(ctx context.Context, afterID, limit int) ([]models.ProgressKey, int, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.errListUnsettled != nil {
		return nil, afterID, p.errListUnsettled
	}
	records := []*models.ProgressRecord{}
	for key, record := range p.progress {
		_, certified := p.certificates[key]
		if record.ID > afterID && (record.Status != models.ProgressStatusCompleted || !certified) {
			records = append(records, record)
		}
	}
	sort.Slice(records, func(i, j int) bool { return records[i].ID < records[j].ID })
	if len(records) > limit {
		records = records[:limit]
	}
	keys := []models.ProgressKey{}
	lastID := afterID
	for _, record := range records {
		keys = append(keys, models.ProgressKey{StudentID: record.StudentID, CourseID: record.CourseID})
		lastID = record.ID
	}
	return keys, lastID, nil
}

// memCertificates implements CertificateRepository
type memCertificates struct{ *memStore }

func (c memCertificates) Exists(ctx context.Context, studentID, courseID int) (bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, ok := c.certificates[models.ProgressKey{StudentID: studentID, CourseID: courseID}]
	return ok, nil
}

func (c memCertificates) Create(ctx context.Context, certificate *models.Certificate) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.errCreateCertificate != nil {
		return c.errCreateCertificate
	}
	key := models.ProgressKey{StudentID: certificate.StudentID, CourseID: certificate.CourseID}
	if _, ok := c.certificates[key]; ok {
		return fmt.Errorf("duplicate student/course: %w", models.ErrAlreadyExists)
	}
	if c.numbers[certificate.CertificateNumber] {
		return fmt.Errorf("duplicate number: %w", models.ErrAlreadyExists)
	}
	c.nextCertificateID++
	certificate.ID = c.nextCertificateID
	copied := *certificate
	c.certificates[key] = &copied
	c.numbers[certificate.CertificateNumber] = true
	return nil
}

func (c memCertificates) GetByNumber(ctx context.Context, number string) (*models.Certificate, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, certificate := range c.certificates {
		if certificate.CertificateNumber == number {
			copied := *certificate
			return &copied, nil
		}
	}
	return nil, fmt.Errorf("certificate %s: %w", number, models.ErrNotFound)
}

func (c memCertificates) ListByStudent(ctx context.Context, studentID int) ([]models.CertificateListItem, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	items := []models.CertificateListItem{}
	for key, certificate := range c.certificates {
		if key.StudentID != studentID {
			continue
		}
		items = append(items, models.CertificateListItem{
			CertificateNumber: certificate.CertificateNumber,
			CourseID:          certificate.CourseID,
			CourseTitle:       c.courses[certificate.CourseID].Title,
			IssuedAt:          certificate.IssuedAt,
			ScorePercentage:   certificate.ScorePercentage,
		})
	}
	sort.Slice(items, func(i, j int) bool { return items[i].CourseID < items[j].CourseID })
	return items, nil
}

// meetingPoint returns a hook that holds each caller until parties callers have arrived or timeout elapses
func meetingPoint(parties int, timeout time.Duration) func(ctx context.Context) {
	var (
		mu      sync.Mutex
		arrived int
		all     = make(chan struct{})
	)
	return func(ctx context.Context) {
		mu.Lock()
		arrived++
		if arrived == parties {
			close(all)
		}
		mu.Unlock()

		select {
		case <-all:
		case <-time.After(timeout):
		}
	}
}

// mockPublisher records published audit events
type mockPublisher struct {
	mu     sync.Mutex
	events []models.AuditEvent
	// ctxErrs holds ctx.Err() as seen by each Publish call
	ctxErrs []error
}

func (p *mockPublisher) Publish(ctx context.Context, event *models.AuditEvent) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, *event)
	p.ctxErrs = append(p.ctxErrs, ctx.Err())
}

func (p *mockPublisher) count(eventType models.AuditEventType) int {
	p.mu.Lock()
	defer p.mu.Unlock()
	n := 0
	for _, event := range p.events {
		if event.Type == eventType {
			n++
		}
	}
	return n
}

type cachedSummary struct {
	summary    *models.ProgressSummary
	generation int64
}

// mockCache is a mock implementation of SummaryCache
type mockCache struct {
	mu          sync.Mutex
	summaries   map[int]cachedSummary
	generations map[int]int64
	getErr      error
	setErr      error
	sets        int
	invalidated []int
}

func newMockCache() *mockCache {
	return &mockCache{summaries: map[int]cachedSummary{}, generations: map[int]int64{}}
}

func (c *mockCache) Get(ctx context.Context, studentID int) (*models.ProgressSummary, int64, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.getErr != nil {
		return nil, 0, c.getErr
	}
	generation := c.generations[studentID]
	entry, ok := c.summaries[studentID]
	if !ok || entry.generation != generation {
		return nil, generation, nil
	}
	return entry.summary, generation, nil
}

func (c *mockCache) Set(ctx context.Context, summary *models.ProgressSummary, generation int64) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.sets++
	if c.setErr != nil {
		return c.setErr
	}
	c.summaries[summary.StudentID] = cachedSummary{summary: summary, generation: generation}
	return nil
}

func (c *mockCache) Invalidate(ctx context.Context, studentID int) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.generations[studentID]++
	c.invalidated = append(c.invalidated, studentID)
	return nil
}

// testEnv wires every service against one memStore
type testEnv struct {
	store        *memStore
	publisher    *mockPublisher
	cache        *mockCache
	progress     *progressService
	certificates *certificateService
	completion   *completionService
	content      *contentService
	reconcile    *reconciliationService
}

var fixedNow = time.Date(2024, 1, 31, 10, 0, 0, 0, time.UTC)

func newTestEnv() *testEnv {
	store := newMemStore()
	publisher := &mockPublisher{}
	cache := newMockCache()
	locks := NewKeyedMutex()
	logger := zap.NewNop()

	progress := NewProgressService(memContent{store}, memLedger{store}, memProgress{store}, store, store, cache, locks, logger, DefaultMaxRetries)
	progress.now = func() time.Time { return fixedNow }

	certificates := NewCertificateService(memCertificates{store}, memProgress{store}, memContent{store}, store, locks, logger, DefaultMaxRetries)
	certificates.now = func() time.Time { return fixedNow }

	completion := NewCompletionService(memContent{store}, memLedger{store}, store, progress, certificates, store, locks, publisher, cache, logger, DefaultMaxRetries)
	completion.now = func() time.Time { return fixedNow }

	return &testEnv{
		store:        store,
		publisher:    publisher,
		cache:        cache,
		progress:     progress,
		certificates: certificates,
		completion:   completion,
		content:      NewContentService(memContent{store}, store),
		reconcile:    NewReconciliationService(memProgress{store}, progress, certificates, store, locks, publisher, cache, logger, DefaultMaxRetries, 2, 2),
	}
}
