// SPDX-FileCopyrightText: 2024 Smile SA
// SPDX-License-Identifier: Apache-2.0

package kubernetesdriver

import (
	"context"
	"fmt"
	"time"

	meta_v1 "k8s.io/apimachinery/pkg/apis/meta/v1"
)

// TenantLabel is the namespace label naming the owning tenant.
const TenantLabel = "tenant"

// NamespaceInfo describes a namespace of the cluster.
type NamespaceInfo struct {
	Name      string
	TenantID  string // from the "tenant" label, may be empty
	CreatedAt time.Time
}

// NamespaceLister lists the namespaces of the cluster.
type NamespaceLister struct {
	Config *Configuration
}

// ListNamespaces returns all namespaces of the cluster.
func (l NamespaceLister) ListNamespaces(ctx context.Context) ([]NamespaceInfo, error) {
	list, err := l.Config.Clientset.CoreV1().Namespaces().List(ctx, meta_v1.ListOptions{})
	if err != nil {
		return nil, fmt.Errorf("cannot list namespaces: %w", err)
	}
	result := make([]NamespaceInfo, 0, len(list.Items))
	for _, ns := range list.Items {
		result = append(result, NamespaceInfo{
			Name:      ns.Name,
			TenantID:  ns.Labels[TenantLabel],
			CreatedAt: ns.CreationTimestamp.UTC(),
		})
	}
	return result, nil
}
