// SPDX-FileCopyrightText: 2024 Smile SA
// SPDX-License-Identifier: Apache-2.0

package rating

import "github.com/Smile-SA/rating-operator-api/internal/models"

// Dimension is one of the columns that frames can be grouped or filtered by.
type Dimension string

// Possible values for Dimension.
const (
	DimensionNamespace Dimension = "namespace"
	DimensionNode      Dimension = "node"
	DimensionPod       Dimension = "pod"
	DimensionMetric    Dimension = "metric"
)

// IsValid returns whether d is one of the known dimensions.
func (d Dimension) IsValid() bool {
	switch d {
	case DimensionNamespace, DimensionNode, DimensionPod, DimensionMetric:
		return true
	default:
		return false
	}
}

// ValueOf returns the value of this dimension for the given frame.
func (d Dimension) ValueOf(f models.Frame) string {
	switch d {
	case DimensionNamespace:
		return f.Namespace
	case DimensionNode:
		return f.Node
	case DimensionPod:
		return f.Pod
	case DimensionMetric:
		return f.Metric
	default:
		return ""
	}
}
