// SPDX-FileCopyrightText: 2024 Smile SA
// SPDX-License-Identifier: Apache-2.0

package tasks

import (
	"context"
	"math/rand"
	"time"

	kubernetesdriver "github.com/Smile-SA/rating-operator-api/internal/drivers/kubernetes"
	"github.com/Smile-SA/rating-operator-api/internal/processor"
	"github.com/Smile-SA/rating-operator-api/internal/rating"
)

// NamespaceSource lists the namespaces that exist in the cluster. It is
// implemented by kubernetesdriver.NamespaceLister.
type NamespaceSource interface {
	ListNamespaces(ctx context.Context) ([]kubernetesdriver.NamespaceInfo, error)
}

// Janitor contains the toolbox of the rating-janitor process.
type Janitor struct {
	cfg        rating.Configuration
	store      rating.Store
	namespaces NamespaceSource //optional
	listRetry  retryOpts

	//non-pure functions that can be replaced by deterministic doubles for unit tests
	timeNow   func() time.Time
	addJitter func(time.Duration) time.Duration
}

// NewJanitor creates a new Janitor.
func NewJanitor(cfg rating.Configuration, store rating.Store) *Janitor {
	return &Janitor{
		cfg:       cfg,
		store:     store,
		listRetry: retryOpts{period: 5 * time.Second, maxAttempts: 3},
		timeNow:   time.Now,
		addJitter: addJitter,
	}
}

// WithNamespaceSource configures where NamespaceSyncJob discovers namespaces.
func (j *Janitor) WithNamespaceSource(namespaces NamespaceSource) *Janitor {
	j.namespaces = namespaces
	return j
}

// OverrideTimeNow replaces time.Now with a test double.
func (j *Janitor) OverrideTimeNow(timeNow func() time.Time) *Janitor {
	j.timeNow = timeNow
	return j
}

// DisableJitter replaces addJitter with a no-op for this Janitor.
func (j *Janitor) DisableJitter() {
	j.addJitter = func(d time.Duration) time.Duration { return d }
}

// addJitter returns a random duration within +/- 10% of the requested value.
// When several janitors are started at once, this keeps them from hitting the
// database and the Kubernetes API in lockstep.
func addJitter(duration time.Duration) time.Duration {
	//nolint:gosec // This is not crypto-relevant, so math/rand is okay.
	r := rand.Float64() //NOTE: 0 <= r < 1
	return time.Duration(float64(duration) * (0.9 + 0.2*r))
}

func (j *Janitor) processor() *processor.Processor {
	return processor.New(j.cfg, j.store).OverrideTimeNow(j.timeNow)
}
