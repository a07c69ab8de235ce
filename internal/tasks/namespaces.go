// SPDX-FileCopyrightText: 2024 Smile SA
// SPDX-License-Identifier: Apache-2.0

package tasks

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/sapcc/go-bits/errext"
	"github.com/sapcc/go-bits/jobloop"
	"github.com/sapcc/go-bits/logg"

	kubernetesdriver "github.com/Smile-SA/rating-operator-api/internal/drivers/kubernetes"
	"github.com/Smile-SA/rating-operator-api/internal/rating"
)

// NamespaceSyncJob is a job. Each run records every cluster namespace in the
// namespace_status table, and associates namespaces without any tenant with
// the tenant named in their "tenant" label (or the public tenant).
func (j *Janitor) NamespaceSyncJob(registerer prometheus.Registerer) jobloop.Job {
	return (&jobloop.CronJob{
		Metadata: jobloop.JobMetadata{
			ReadableName: "sync namespaces from Kubernetes",
			CounterOpts: prometheus.CounterOpts{
				Name: "rating_namespace_syncs",
				Help: "Counter for namespace sync runs.",
			},
		},
		Interval:     j.cfg.NamespaceSyncInterval,
		InitialDelay: j.addJitter(10 * time.Second),
		Task:         j.syncNamespaces,
	}).Setup(registerer)
}

func (j *Janitor) syncNamespaces(ctx context.Context, _ prometheus.Labels) error {
	if j.namespaces == nil {
		return errors.New("no namespace source configured")
	}
	var namespaces []kubernetesdriver.NamespaceInfo
	err := retry(ctx, j.listRetry, func(ctx context.Context) (err error) {
		namespaces, err = j.namespaces.ListNamespaces(ctx)
		return err
	})
	if err != nil {
		return fmt.Errorf("cannot list namespaces: %w", err)
	}

	now := j.timeNow()
	var errs errext.ErrorSet
	for _, ns := range namespaces {
		err := j.store.RecordNamespaceStatus(ctx, ns.Name, now)
		if err != nil {
			errs.Addf("cannot record status of namespace %q: %w", ns.Name, err)
			continue
		}

		tenants, err := j.store.TenantsOfNamespace(ctx, ns.Name)
		if err != nil {
			errs.Addf("cannot find tenants of namespace %q: %w", ns.Name, err)
			continue
		}
		if len(tenants) > 0 {
			continue
		}

		tenantID := ns.TenantID
		if tenantID == "" {
			tenantID = j.cfg.PublicTenantID
		}
		err = j.processor().AssociateNamespace(ctx, rating.Admin(), ns.Name, tenantID)
		if err != nil {
			errs.Addf("cannot associate namespace %q with tenant %q: %w", ns.Name, tenantID, err)
			continue
		}
		namespacesDiscoveredCounter.Inc()
		logg.Info("discovered namespace %q, now owned by tenant %q", ns.Name, tenantID)
	}
	if errs.IsEmpty() {
		return nil
	}
	return errors.New(errs.Join(", "))
}
