// SPDX-FileCopyrightText: 2024 Smile SA
// SPDX-License-Identifier: Apache-2.0

package kubernetesdriver

import (
	"context"
	"fmt"
	"reflect"
	"regexp"
	"strings"

	k8s_errors "k8s.io/apimachinery/pkg/api/errors"
	meta_v1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/apimachinery/pkg/apis/meta/v1/unstructured"
	"k8s.io/apimachinery/pkg/runtime/schema"
	"k8s.io/client-go/dynamic"
)

// ObjectKind is an enum containing the kinds that are supported by type
// ManagedObject.
type ObjectKind string

const (
	// ObjectKindTemplate is a kind supported by ManagedObject.
	ObjectKindTemplate ObjectKind = "RatingRuleTemplate"
	// ObjectKindInstance is a kind supported by ManagedObject.
	ObjectKindInstance ObjectKind = "RatingRuleInstance"
)

// APIVersion is the API version of all rating rule custom resources.
const APIVersion = "rating.smile.fr/v1"

// Resource returns the GroupVersionResource of this kind.
func (k ObjectKind) Resource() schema.GroupVersionResource {
	gvr := schema.GroupVersionResource{Group: "rating.smile.fr", Version: "v1"}
	switch k {
	case ObjectKindTemplate:
		gvr.Resource = "ratingruletemplates"
	case ObjectKindInstance:
		gvr.Resource = "ratingruleinstances"
	default:
		panic(fmt.Sprintf("ObjectKind.Resource() cannot handle kind %q", k))
	}
	return gvr
}

var invalidNameCharsRx = regexp.MustCompile(`[^a-z0-9.-]+`)

// ObjectName returns the name of the custom resource for the given template
// or metric name, e.g. "rating-rule-template-aws-cloud-cost". Names are
// lowercased and stripped of characters that are not allowed in DNS subdomains.
func (k ObjectKind) ObjectName(name string) string {
	prefix := "rating-rule-instance-"
	if k == ObjectKindTemplate {
		prefix = "rating-rule-template-"
	}
	name = invalidNameCharsRx.ReplaceAllString(strings.ToLower(name), "-")
	return strings.Trim(prefix+name, "-.")
}

// ManagedObject describes the desired state of a custom resource in k8s.
type ManagedObject struct {
	Kind ObjectKind
	Name string
	// Spec is the desired content of the "spec" field. Values must be strings.
	Spec map[string]any
}

func (mo ManagedObject) client(cfg *Configuration) dynamic.ResourceInterface {
	return cfg.Dynamic.Resource(mo.Kind.Resource()).Namespace(cfg.NamespaceName)
}

// GetCurrentState returns the current state of this managed object on the k8s
// apiserver, or nil if it does not exist on the apiserver at the moment.
func (mo ManagedObject) GetCurrentState(ctx context.Context, cfg *Configuration) (*unstructured.Unstructured, error) {
	obj, err := mo.client(cfg).Get(ctx, mo.Name, meta_v1.GetOptions{})
	if k8s_errors.IsNotFound(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("cannot get %s %s: %w", mo.Kind, mo.Name, err)
	}
	return obj, nil
}

// CreateOrUpdate calls either Create or Update depending on whether
// `currentState` is nil or not.
func (mo ManagedObject) CreateOrUpdate(ctx context.Context, currentState *unstructured.Unstructured, cfg *Configuration) (*unstructured.Unstructured, error) {
	if currentState == nil {
		newState, err := mo.Create(ctx, cfg)
		if err != nil {
			err = fmt.Errorf("cannot create %s %s: %w", mo.Kind, mo.Name, err)
		}
		return newState, err
	}
	newState, err := mo.Update(ctx, currentState, cfg)
	if err != nil {
		err = fmt.Errorf("cannot update %s %s: %w", mo.Kind, mo.Name, err)
	}
	return newState, err
}

// Create attempts to create this ManagedObject on the server. On success,
// returns the state of the object as returned by the server.
func (mo ManagedObject) Create(ctx context.Context, cfg *Configuration) (*unstructured.Unstructured, error) {
	obj := &unstructured.Unstructured{Object: map[string]any{}}
	obj.SetAPIVersion(APIVersion)
	obj.SetKind(string(mo.Kind))
	obj.SetName(mo.Name)
	obj.SetNamespace(cfg.NamespaceName)
	var labels map[string]string
	cfg.AddCommonLabels(&labels)
	obj.SetLabels(labels)
	obj.Object["spec"] = mo.Spec
	return mo.client(cfg).Create(ctx, obj, meta_v1.CreateOptions{})
}

// Update attempts to update this ManagedObject on the server if any changes are
// deemed necessary. On success, returns the state of the object as returned by
// the server.
func (mo ManagedObject) Update(ctx context.Context, currentState *unstructured.Unstructured, cfg *Configuration) (*unstructured.Unstructured, error) {
	if !cfg.CheckCommonLabels(currentState) {
		return nil, fmt.Errorf("refusing to overwrite %s %s which is not managed by %s", mo.Kind, mo.Name, cfg.Marker)
	}
	//only do an update if we really need to change something
	desiredState := currentState.DeepCopy()
	desiredState.Object["spec"] = mo.Spec
	if reflect.DeepEqual(desiredState.Object["spec"], currentState.Object["spec"]) {
		return currentState, nil
	}
	return mo.client(cfg).Update(ctx, desiredState, meta_v1.UpdateOptions{})
}

// Delete removes this object from the server. Objects that do not exist are
// not an error.
func (mo ManagedObject) Delete(ctx context.Context, cfg *Configuration) error {
	err := mo.client(cfg).Delete(ctx, mo.Name, meta_v1.DeleteOptions{})
	if err != nil && !k8s_errors.IsNotFound(err) {
		return fmt.Errorf("cannot delete %s %s: %w", mo.Kind, mo.Name, err)
	}
	return nil
}
