package providers

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"sync"
	"time"

	"onboard/pkg/domain"
)

// Kind identifies the capability a provider offers.
type Kind string

const (
	KindIdentity         Kind = "identity"
	KindDocumentAnalysis Kind = "document_analysis"
	KindFace             Kind = "face"
	KindLiveness         Kind = "liveness"
	KindFinancialPrimary Kind = "financial_primary"
	KindAccountVerifier  Kind = "account_verifier"
	KindStatements       Kind = "statements"
	KindEnrichment       Kind = "enrichment"
	KindScreening        Kind = "aml_screening"
	KindAccount          Kind = "account_provisioning"
	KindTextGeneration   Kind = "text_generation"
)

// Well-known provider ids. Live and stub registries use the same ids so the
// gateway can substitute one for the other.
const (
	IDDocumentAnalysis = "document-analysis"
	IDIdentity         = "identity"
	IDFace             = "face"
	IDLiveness         = "liveness"
	IDPrimaryFinancial = "cdr-primary"
	IDAccountVerifier  = "account-verifier"
	IDStatements       = "statements"
	IDEnrichment       = "enrichment"
	IDScreening        = "aml-screening"
	IDCoreBanking      = "core-banking"
	IDTextGeneration   = "text-generation"
)

// Request is the uniform input to a provider call.
type Request struct {
	Operation string
	ProcessID domain.ProcessID
	// IdempotencyKey lets providers deduplicate retried calls.
	IdempotencyKey string
	Params         map[string]any
	Blobs          map[string][]byte
}

// Response is a provider's answer. Verified=false with a Reason is an explicit
// negative result; failures to answer are errors instead.
type Response struct {
	ProviderID string
	Verified   bool
	Reason     string
	Payload    map[string]any
	// Simulated is true for stub output and must survive into stage results.
	Simulated  bool
	ReceivedAt time.Time
}

// Provider is a synchronous request/response capability.
type Provider interface {
	ID() string
	Kind() Kind
	Call(ctx context.Context, req Request) (*Response, error)
}

type JobState string

const (
	JobPending  JobState = "pending"
	JobComplete JobState = "complete"
	JobFailed   JobState = "failed"
)

// JobStatus is one poll result of an asynchronous job.
type JobStatus struct {
	State     JobState
	Payload   map[string]any
	Reason    string
	Simulated bool
}

// AsyncProvider runs work as a background job the caller polls.
type AsyncProvider interface {
	ID() string
	Kind() Kind
	Submit(ctx context.Context, req Request) (jobID string, err error)
	Poll(ctx context.Context, jobID string) (*JobStatus, error)
}

// Registry holds sync and async providers by id.
type Registry struct {
	mu    sync.RWMutex
	sync  map[string]Provider
	async map[string]AsyncProvider
}

func NewRegistry() *Registry {
	return &Registry{
		sync:  make(map[string]Provider),
		async: make(map[string]AsyncProvider),
	}
}

func (r *Registry) Register(p Provider) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.sync[p.ID()]; exists {
		return fmt.Errorf("provider %s already registered", p.ID())
	}
	r.sync[p.ID()] = p
	return nil
}

func (r *Registry) RegisterAsync(p AsyncProvider) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.async[p.ID()]; exists {
		return fmt.Errorf("async provider %s already registered", p.ID())
	}
	r.async[p.ID()] = p
	return nil
}

func (r *Registry) Get(id string) (Provider, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	p, ok := r.sync[id]
	return p, ok
}

func (r *Registry) GetAsync(id string) (AsyncProvider, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	p, ok := r.async[id]
	return p, ok
}

// IDs lists every registered id, sorted.
func (r *Registry) IDs() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	ids := make([]string, 0, len(r.sync)+len(r.async))
	for id := range r.sync {
		ids = append(ids, id)
	}
	for id := range r.async {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// Decode converts a loosely typed payload into dst via its JSON shape.
func Decode(payload map[string]any, dst any) error {
	raw, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("encode payload: %w", err)
	}
	if err := json.Unmarshal(raw, dst); err != nil {
		return fmt.Errorf("decode payload: %w", err)
	}
	return nil
}
