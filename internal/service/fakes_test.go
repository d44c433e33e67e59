package service

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/remoteprint/remoteprint/internal/auth"
	"github.com/remoteprint/remoteprint/internal/model"
	"github.com/remoteprint/remoteprint/internal/repository"
)

// fakeDB is an in-memory stand-in for the Postgres repository.
type fakeDB struct {
	mu        sync.Mutex
	accounts  map[string]*model.Account
	keys      map[string]*model.APIKey
	jobs      []*model.PrintJob
	computers []*model.Computer
	lastUsed  []string

	errLookupKey   error
	errGetAccount  error
	errListAccount error
	errCreateJob   error
	errIncrement   error
	errResetFor    map[string]error

	lookups    int
	increments int

	// afterLookup runs once a key lookup has returned, outside the lock.
	afterLookup func()
}

func newFakeDB() *fakeDB {
	return &fakeDB{
		accounts:    make(map[string]*model.Account),
		keys:        make(map[string]*model.APIKey),
		errResetFor: make(map[string]error),
	}
}

func (f *fakeDB) addAccount(id string, plan model.PlanID, count int) *model.Account {
	f.mu.Lock()
	defer f.mu.Unlock()
	now := time.Date(2026, 9, 1, 0, 0, 0, 0, time.UTC)
	account := &model.Account{
		ID:        id,
		Email:     id + "@example.com",
		Plan:      model.NewPlanState(plan, now),
		CreatedAt: now.Add(time.Duration(len(f.accounts)) * time.Second),
	}
	account.Plan.MonthlyPrintCount = count
	f.accounts[id] = account
	return account
}

func (f *fakeDB) addKey(accountID, raw string, scopes ...string) *model.APIKey {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(scopes) == 0 {
		scopes = model.DefaultScopes
	}
	key := &model.APIKey{
		ID:        "key-" + raw,
		AccountID: accountID,
		Name:      "test",
		KeyHash:   auth.HashAPIKey(raw),
		KeyPrefix: auth.KeyPrefix(raw),
		Scopes:    scopes,
		CreatedAt: time.Now(),
	}
	f.keys[key.ID] = key
	return key
}

func (f *fakeDB) count(accountID string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.accounts[accountID].Plan.MonthlyPrintCount
}

func (f *fakeDB) jobCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.jobs)
}

func (f *fakeDB) writes() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.jobs) + f.increments
}

// KeyLookup

func (f *fakeDB) GetActiveAPIKeyByHash(_ context.Context, keyHash string) (*model.APIKey, error) {
	key, err := f.lookupKey(keyHash)
	if f.afterLookup != nil {
		f.afterLookup()
	}
	return key, err
}

func (f *fakeDB) lookupKey(keyHash string) (*model.APIKey, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.lookups++
	if f.errLookupKey != nil {
		return nil, f.errLookupKey
	}
	for _, k := range f.keys {
		if k.KeyHash == keyHash && !k.IsRevoked() {
			cp := *k
			return &cp, nil
		}
	}
	return nil, repository.ErrAPIKeyNotFound
}

func (f *fakeDB) UpdateAPIKeyLastUsed(_ context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.lastUsed = append(f.lastUsed, id)
	return nil
}

// AccountStore

func (f *fakeDB) GetAccountByID(_ context.Context, id string) (*model.Account, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.errGetAccount != nil {
		return nil, f.errGetAccount
	}
	account, ok := f.accounts[id]
	if !ok {
		return nil, repository.ErrAccountNotFound
	}
	cp := *account
	return &cp, nil
}

func (f *fakeDB) CreateAccount(_ context.Context, account *model.Account) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, a := range f.accounts {
		if a.Email == account.Email {
			return repository.ErrEmailExists
		}
	}
	cp := *account
	f.accounts[account.ID] = &cp
	return nil
}

func (f *fakeDB) UpdateCompanyName(_ context.Context, id, name string) (*model.Account, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	account, ok := f.accounts[id]
	if !ok {
		return nil, repository.ErrAccountNotFound
	}
	account.CompanyName = name
	cp := *account
	return &cp, nil
}

// PrintJobStore

func (f *fakeDB) CreatePrintJob(_ context.Context, job *model.PrintJob) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.errCreateJob != nil {
		return f.errCreateJob
	}
	cp := *job
	f.jobs = append(f.jobs, &cp)
	return nil
}

func (f *fakeDB) IncrementPrintCount(_ context.Context, accountID string) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.errIncrement != nil {
		return 0, f.errIncrement
	}
	account, ok := f.accounts[accountID]
	if !ok {
		return 0, repository.ErrAccountNotFound
	}
	f.increments++
	account.Plan.MonthlyPrintCount++
	return account.Plan.MonthlyPrintCount, nil
}

// UsageResetter

func (f *fakeDB) ListAccounts(_ context.Context) ([]*model.Account, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.errListAccount != nil {
		return nil, f.errListAccount
	}
	out := make([]*model.Account, 0, len(f.accounts))
	for _, a := range f.accounts {
		cp := *a
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

func (f *fakeDB) ResetPrintCount(_ context.Context, accountID string, cycleStart time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.errResetFor[accountID]; err != nil {
		return err
	}
	account, ok := f.accounts[accountID]
	if !ok {
		return repository.ErrAccountNotFound
	}
	account.Plan.MonthlyPrintCount = 0
	account.Plan.BillingCycleStart = cycleStart
	return nil
}

// ComputerStore

func (f *fakeDB) CreateComputer(_ context.Context, c *model.Computer) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	cp := *c
	f.computers = append(f.computers, &cp)
	return nil
}

func (f *fakeDB) ListComputersByAccount(_ context.Context, accountID string) ([]*model.Computer, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []*model.Computer
	for i := len(f.computers) - 1; i >= 0; i-- {
		if f.computers[i].AccountID == accountID {
			cp := *f.computers[i]
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (f *fakeDB) CountComputersByAccount(ctx context.Context, accountID string) (int, error) {
	list, err := f.ListComputersByAccount(ctx, accountID)
	return len(list), err
}

func (f *fakeDB) DeleteComputer(_ context.Context, accountID, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for i, c := range f.computers {
		if c.ID == id && c.AccountID == accountID {
			f.computers = append(f.computers[:i], f.computers[i+1:]...)
			return nil
		}
	}
	return repository.ErrComputerNotFound
}

// PrintJobReader

func (f *fakeDB) GetPrintJob(_ context.Context, accountID, id string) (*model.PrintJob, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, j := range f.jobs {
		if j.ID == id && j.AccountID == accountID {
			cp := *j
			return &cp, nil
		}
	}
	return nil, repository.ErrPrintJobNotFound
}

func (f *fakeDB) ListPrintJobs(_ context.Context, filter repository.PrintJobFilter) ([]*model.PrintJob, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []*model.PrintJob
	for i := len(f.jobs) - 1; i >= 0 && len(out) < filter.Limit; i-- {
		j := f.jobs[i]
		if j.AccountID != filter.AccountID {
			continue
		}
		if filter.Status != "" && j.Status != filter.Status {
			continue
		}
		cp := *j
		out = append(out, &cp)
	}
	return out, nil
}

func (f *fakeDB) CountPrintJobsByStatus(_ context.Context, accountID string) (map[model.JobStatus]int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	counts := make(map[model.JobStatus]int)
	for _, j := range f.jobs {
		if j.AccountID == accountID {
			counts[j.Status]++
		}
	}
	return counts, nil
}

// APIKeyStore

func (f *fakeDB) CreateAPIKey(_ context.Context, key *model.APIKey) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.accounts[key.AccountID]; !ok {
		return repository.ErrAccountNotFound
	}
	cp := *key
	f.keys[key.ID] = &cp
	return nil
}

func (f *fakeDB) ListAPIKeysByAccount(_ context.Context, accountID string) ([]*model.APIKey, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []*model.APIKey
	for _, k := range f.keys {
		if k.AccountID == accountID {
			cp := *k
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (f *fakeDB) RevokeAPIKey(_ context.Context, accountID, id string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	k, ok := f.keys[id]
	if !ok || k.AccountID != accountID || k.IsRevoked() {
		return "", repository.ErrAPIKeyNotFound
	}
	now := time.Now()
	k.RevokedAt = &now
	return k.KeyHash, nil
}

// fakeCache is an in-memory AuthCache.
type fakeCache struct {
	mu      sync.Mutex
	entries map[string]*model.AuthContext
	unknown map[string]bool
	revoked map[string]bool
}

func newFakeCache() *fakeCache {
	return &fakeCache{
		entries: make(map[string]*model.AuthContext),
		unknown: make(map[string]bool),
		revoked: make(map[string]bool),
	}
}

func (c *fakeCache) GetAuthContext(_ context.Context, keyHash string) (*model.AuthContext, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.entries[keyHash], nil
}

func (c *fakeCache) SetAuthContext(_ context.Context, keyHash string, authCtx *model.AuthContext) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[keyHash] = authCtx
	return nil
}

func (c *fakeCache) DeleteAuthContext(_ context.Context, keyHash string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.entries, keyHash)
	return nil
}

func (c *fakeCache) IsKeyUnknown(_ context.Context, keyHash string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.unknown[keyHash]
}

func (c *fakeCache) MarkKeyUnknown(_ context.Context, keyHash string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.unknown[keyHash] = true
	return nil
}

func (c *fakeCache) ClearKeyUnknown(_ context.Context, keyHash string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.unknown, keyHash)
	return nil
}

func (c *fakeCache) IsKeyRevoked(_ context.Context, keyHash string) (bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.revoked[keyHash], nil
}

func (c *fakeCache) MarkKeyRevoked(_ context.Context, keyHash string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.revoked[keyHash] = true
	return nil
}

// fakeStore records blob writes.
type fakeStore struct {
	mu      sync.Mutex
	objects map[string][]byte
	types   map[string]string
	errPut  error
}

func newFakeStore() *fakeStore {
	return &fakeStore{objects: make(map[string][]byte), types: make(map[string]string)}
}

var errFakeExists = errors.New("fake: object exists")

func (s *fakeStore) Put(_ context.Context, path string, data []byte, contentType string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.errPut != nil {
		return s.errPut
	}
	if _, ok := s.objects[path]; ok {
		return errFakeExists
	}
	s.objects[path] = append([]byte(nil), data...)
	s.types[path] = contentType
	return nil
}

func (s *fakeStore) Delete(_ context.Context, path string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.objects, path)
	return nil
}

func (s *fakeStore) Ping(context.Context) error { return nil }

func (s *fakeStore) puts() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.objects)
}
