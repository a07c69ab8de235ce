// SPDX-FileCopyrightText: 2024 Smile SA
// SPDX-License-Identifier: Apache-2.0

package kubernetesdriver

import (
	"fmt"
	"os"

	meta_v1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/client-go/dynamic"
	"k8s.io/client-go/kubernetes"
	"k8s.io/client-go/rest"
	"k8s.io/client-go/tools/clientcmd"
)

// Configuration collects everything that the Kubernetes drivers need to talk
// to the apiserver.
type Configuration struct {
	// NamespaceName is where the rating rule custom resources live.
	NamespaceName string
	Marker        string
	Clientset     kubernetes.Interface
	Dynamic       dynamic.Interface
}

// NewConfiguration connects to the apiserver. If $KUBECONFIG is set, it is
// used, otherwise the in-cluster configuration is used.
func NewConfiguration(namespaceName string) (*Configuration, error) {
	restConfig, err := buildRESTConfig()
	if err != nil {
		return nil, fmt.Errorf("building kubernetes config: %w", err)
	}
	clientset, err := kubernetes.NewForConfig(restConfig)
	if err != nil {
		return nil, fmt.Errorf("creating kubernetes client: %w", err)
	}
	dynamicClient, err := dynamic.NewForConfig(restConfig)
	if err != nil {
		return nil, fmt.Errorf("creating dynamic kubernetes client: %w", err)
	}
	return &Configuration{
		NamespaceName: namespaceName,
		Marker:        "rating-operator-api",
		Clientset:     clientset,
		Dynamic:       dynamicClient,
	}, nil
}

func buildRESTConfig() (*rest.Config, error) {
	kubeconfigPath := os.Getenv("KUBECONFIG")
	if kubeconfigPath == "" {
		return rest.InClusterConfig()
	}
	rules := &clientcmd.ClientConfigLoadingRules{ExplicitPath: kubeconfigPath}
	return clientcmd.NewNonInteractiveDeferredLoadingClientConfig(rules, &clientcmd.ConfigOverrides{}).ClientConfig()
}

// AddCommonLabels adds the "heritage" label to the given label set in-place.
// This driver uses it to recognize objects managed by it.
func (cfg Configuration) AddCommonLabels(labels *map[string]string) {
	if *labels == nil {
		*labels = make(map[string]string)
	}
	(*labels)["heritage"] = cfg.Marker
}

// CheckCommonLabels returns whether the object is managed by this driver.
func (cfg Configuration) CheckCommonLabels(meta meta_v1.Object) bool {
	return meta.GetLabels()["heritage"] == cfg.Marker
}
