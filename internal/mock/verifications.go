package mock

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/brewgator/fixpet/internal/groq"
)

const imagePreviewLen = 100

var repairKeywords = []string{
	"fixed", "repaired", "replaced", "cleaned", "removed",
	"restored", "patched", "painted", "installed", "filled",
}

// Verification is a stored fake model judgement. Images are truncated.
type Verification struct {
	VerificationID string    `json:"verification_id"`
	BeforeImage    string    `json:"before_image"`
	AfterImage     string    `json:"after_image"`
	Description    string    `json:"description"`
	Title          string    `json:"title"`
	Confidence     int       `json:"confidence"`
	Reasoning      string    `json:"reasoning"`
	Timestamp      time.Time `json:"timestamp"`
}

// VerificationStore stands in for the vision model. Scores depend only on
// the inputs.
type VerificationStore struct {
	mu            sync.RWMutex
	verifications map[string]*Verification
	now           func() time.Time
}

// NewVerificationStore creates an empty store.
func NewVerificationStore() *VerificationStore {
	return &VerificationStore{
		verifications: make(map[string]*Verification),
		now:           time.Now,
	}
}

// Name identifies the service in health reports.
func (s *VerificationStore) Name() string { return "groq" }

// Ping always succeeds.
func (s *VerificationStore) Ping(ctx context.Context) error { return nil }

// VerifyFix implements groq.Verifier.
func (s *VerificationStore) VerifyFix(ctx context.Context, req groq.FixRequest) (*groq.Verdict, error) {
	v := s.Verify(req.BeforeImage, req.AfterImage, req.Description, req.Title)
	return &groq.Verdict{Confidence: v.Confidence, Reasoning: v.Reasoning}, nil
}

// Verify scores a before/after pair and records it.
//
// The size difference between the two payloads picks the base score: under
// 5% is 6, under 15% is 7, anything else 8. A score of 7 or more is raised
// to 9 when the description mentions a repair.
func (s *VerificationStore) Verify(beforeImage, afterImage, description, title string) Verification {
	diff := sizeDifferencePct(len(beforeImage), len(afterImage))

	confidence := 8
	switch {
	case diff < 5:
		confidence = 6
	case diff < 15:
		confidence = 7
	}
	mentionsRepair := hasRepairKeyword(description)
	if mentionsRepair && confidence >= 7 {
		confidence = 9
	}

	v := &Verification{
		VerificationID: uuid.NewString(),
		BeforeImage:    truncate(beforeImage, imagePreviewLen),
		AfterImage:     truncate(afterImage, imagePreviewLen),
		Description:    description,
		Title:          title,
		Confidence:     confidence,
		Reasoning:      reasoningFor(confidence),
		Timestamp:      s.now().UTC(),
	}

	s.mu.Lock()
	s.verifications[v.VerificationID] = v
	s.mu.Unlock()
	return *v
}

// Get returns a stored verification.
func (s *VerificationStore) Get(id string) (*Verification, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	v, ok := s.verifications[id]
	if !ok {
		return nil, false
	}
	out := *v
	return &out, true
}

// List returns every verification, oldest first.
func (s *VerificationStore) List() []Verification {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]Verification, 0, len(s.verifications))
	for _, v := range s.verifications {
		out = append(out, *v)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Timestamp.Before(out[j].Timestamp) })
	return out
}

// Reset clears the store.
func (s *VerificationStore) Reset() {
	s.mu.Lock()
	s.verifications = make(map[string]*Verification)
	s.mu.Unlock()
}

func sizeDifferencePct(before, after int) float64 {
	if before == 0 {
		if after == 0 {
			return 0
		}
		return 100
	}
	d := after - before
	if d < 0 {
		d = -d
	}
	return float64(d) / float64(before) * 100
}

func hasRepairKeyword(description string) bool {
	lower := strings.ToLower(description)
	for _, kw := range repairKeywords {
		if strings.Contains(lower, kw) {
			return true
		}
	}
	return false
}

func reasoningFor(confidence int) string {
	switch {
	case confidence >= 9:
		return "The after image shows clear changes consistent with the described repair."
	case confidence == 8:
		return "The images differ substantially, suggesting the issue was addressed."
	case confidence == 7:
		return "Some visible changes between the images, but the fix is not clearly described."
	default:
		return "The images look very similar; the fix may be minor or incomplete."
	}
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
