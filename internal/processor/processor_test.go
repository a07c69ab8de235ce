// SPDX-FileCopyrightText: 2024 Smile SA
// SPDX-License-Identifier: Apache-2.0

package processor_test

import (
	"bytes"
	"context"
	"strings"
	"testing"
	"time"

	"github.com/sapcc/go-bits/assert"
	"github.com/sapcc/go-bits/mock"
	"github.com/sapcc/go-bits/must"
	"github.com/shopspring/decimal"

	promdriver "github.com/Smile-SA/rating-operator-api/internal/drivers/prometheus"
	"github.com/Smile-SA/rating-operator-api/internal/models"
	"github.com/Smile-SA/rating-operator-api/internal/processor"
	"github.com/Smile-SA/rating-operator-api/internal/rating"
	"github.com/Smile-SA/rating-operator-api/internal/rules"
	"github.com/Smile-SA/rating-operator-api/internal/test"
)

type fakeBackend struct {
	Queries []string
}

func (b *fakeBackend) Query(_ context.Context, query string, ts time.Time) ([]promdriver.Sample, error) {
	b.Queries = append(b.Queries, query)
	return []promdriver.Sample{{Labels: map[string]string{"pod": "pod-1"}, Value: 0.5, Timestamp: ts}}, nil
}

func setup(t *testing.T) (*processor.Processor, *test.MemoryStore, *mock.Clock) {
	t.Helper()
	store := test.NewMemoryStore()
	clock := mock.NewClock()
	clock.StepBy(24 * time.Hour)
	cfg := rating.Configuration{PublicTenantID: "default"}
	p := processor.New(cfg, store).OverrideTimeNow(clock.Now)
	return p, store, clock
}

func pricedFrame(begin, namespace, pod, value string) models.Frame {
	b := must.Return(time.Parse(time.RFC3339, begin))
	return models.Frame{
		FrameBegin: b,
		FrameEnd:   b.Add(time.Hour),
		Namespace:  namespace,
		Node:       "node-1",
		Pod:        pod,
		Metric:     "cpu",
		Quantity:   1,
		Price:      decimal.NewNullDecimal(decimal.RequireFromString(value)),
	}
}

func TestReportIsRestrictedToScope(t *testing.T) {
	ctx := context.Background()
	p, store, _ := setup(t)
	store.AddFrames(
		pricedFrame("2024-01-01T00:00:00Z", "ns-a", "pod-1", "1"),
		pricedFrame("2024-01-01T00:00:00Z", "ns-b", "pod-2", "10"),
	)
	req := processor.ReportRequest{
		Operation: "total_rating",
		Start:     "2024-01-01",
		End:       "2024-01-02",
	}

	//the tenant only sees its own namespace
	report, err := p.Report(ctx, rating.ForTenant("alice", []string{"ns-a"}), req)
	must.SucceedT(t, err)
	assert.DeepEqual(t, "tenant total", report.Results[0].Price.String(), "1")

	report, err = p.Report(ctx, rating.Admin(), req)
	must.SucceedT(t, err)
	assert.DeepEqual(t, "admin total", report.Results[0].Price.String(), "11")

	//explicitly asking for a foreign namespace is forbidden, even if it does not exist
	req.Namespace = "ns-b"
	_, err = p.Report(ctx, rating.ForTenant("alice", []string{"ns-a"}), req)
	assert.DeepEqual(t, "is forbidden", rating.IsCode(err, rating.ErrForbidden), true)
	req.Namespace = "ns-nonexistent"
	_, err = p.Report(ctx, rating.ForTenant("alice", []string{"ns-a"}), req)
	assert.DeepEqual(t, "is forbidden", rating.IsCode(err, rating.ErrForbidden), true)

	//anonymous users never see cost data
	req.Namespace = ""
	_, err = p.Report(ctx, rating.Public(), req)
	assert.DeepEqual(t, "is forbidden", rating.IsCode(err, rating.ErrForbidden), true)

	//malformed timestamps
	req.Start = "yesterday"
	_, err = p.Report(ctx, rating.Admin(), req)
	assert.DeepEqual(t, "is validation error", rating.IsCode(err, rating.ErrValidation), true)
}

func TestCatalogues(t *testing.T) {
	ctx := context.Background()
	p, store, _ := setup(t)
	store.AddFrames(
		pricedFrame("2024-01-01T00:00:00Z", "ns-a", "pod-1", "1"),
		pricedFrame("2024-01-01T03:00:00Z", "ns-a", "pod-1", "1"),
		pricedFrame("2023-12-31T00:00:00Z", "ns-b", "pod-2", "10"),
	)
	must.SucceedT(t, p.AssociateNamespace(ctx, rating.Admin(), "ns-a", "alice"))
	must.SucceedT(t, p.AssociateNamespace(ctx, rating.Admin(), "ns-b", "default"))
	alice := rating.ForTenant("alice", []string{"ns-a"})

	pods, err := p.DistinctValues(ctx, alice, rating.DimensionPod, "2023-01-01", "2025-01-01")
	must.SucceedT(t, err)
	assert.DeepEqual(t, "pods", pods.Results, []string{"pod-1"})

	lifetime, err := p.PodLifetime(ctx, alice, "pod-1")
	must.SucceedT(t, err)
	assert.DeepEqual(t, "first frame", lifetime.Results[0].FirstBegin.Format(time.RFC3339), "2024-01-01T00:00:00Z")
	assert.DeepEqual(t, "last frame", lifetime.Results[0].LastEnd.Format(time.RFC3339), "2024-01-01T04:00:00Z")
	_, err = p.PodLifetime(ctx, alice, "pod-2")
	assert.DeepEqual(t, "foreign pod is not found", rating.IsCode(err, rating.ErrNotFound), true)

	oldest, err := p.OldestFrame(ctx, rating.Admin())
	must.SucceedT(t, err)
	assert.DeepEqual(t, "oldest namespace", oldest.Results[0].Namespace, "ns-b")
	oldest, err = p.OldestFrame(ctx, alice)
	must.SucceedT(t, err)
	assert.DeepEqual(t, "oldest namespace", oldest.Results[0].Namespace, "ns-a")

	namespaces, err := p.Namespaces(ctx, rating.Public())
	must.SucceedT(t, err)
	assert.DeepEqual(t, "public namespaces", namespaces.Results, []models.Namespace{{Name: "ns-b", TenantID: "default"}})
	namespaces, err = p.Namespaces(ctx, alice)
	must.SucceedT(t, err)
	assert.DeepEqual(t, "tenant namespaces", namespaces.Results, []models.Namespace{{Name: "ns-a", TenantID: "alice"}})

	_, err = p.FrameStatus(ctx, alice)
	assert.DeepEqual(t, "frame status is admin only", rating.IsCode(err, rating.ErrForbidden), true)
}

func TestTenantManagement(t *testing.T) {
	ctx := context.Background()
	p, _, _ := setup(t)

	err := p.CreateTenant(ctx, rating.ForTenant("alice", nil), "bob", "secret", nil)
	assert.DeepEqual(t, "tenants cannot create tenants", rating.IsCode(err, rating.ErrForbidden), true)

	must.SucceedT(t, p.CreateTenant(ctx, rating.Admin(), "alice", "secret", []string{"team"}))
	err = p.CreateTenant(ctx, rating.Admin(), "alice", "other", nil)
	assert.DeepEqual(t, "duplicate tenant", rating.IsCode(err, rating.ErrValidation), true)

	must.SucceedT(t, p.AssociateNamespace(ctx, rating.Admin(), "ns-a", "alice"))
	must.SucceedT(t, p.LinkNamespace(ctx, rating.Admin(), "ns-shared", "alice"))
	must.SucceedT(t, p.LinkNamespace(ctx, rating.Admin(), "ns-shared", "bob"))

	tenants, err := p.ListTenants(ctx, rating.Admin())
	must.SucceedT(t, err)
	assert.DeepEqual(t, "tenants", tenants.Results, []processor.TenantInfo{{
		TenantID:   "alice",
		Groups:     []string{"team"},
		Namespaces: []string{"ns-a", "ns-shared"},
	}})

	must.SucceedT(t, p.UnlinkNamespace(ctx, rating.Admin(), "ns-shared", "alice"))
	err = p.UnlinkNamespace(ctx, rating.Admin(), "ns-shared", "alice")
	assert.DeepEqual(t, "unlink twice", rating.IsCode(err, rating.ErrNotFound), true)

	must.SucceedT(t, p.DeleteTenant(ctx, rating.Admin(), "alice"))
	err = p.DeleteTenant(ctx, rating.Admin(), "alice")
	assert.DeepEqual(t, "delete twice", rating.IsCode(err, rating.ErrNotFound), true)

	assert.DeepEqual(t, "current tenant", p.Current(rating.ForTenant("bob", nil)), "bob")
	assert.DeepEqual(t, "current public", p.Current(rating.Public()), "")
}

func TestDeleteTenantWithoutCredentials(t *testing.T) {
	ctx := context.Background()
	p, store, _ := setup(t)

	//namespace sync links tenants by label, without creating credentials for them
	must.SucceedT(t, p.AssociateNamespace(ctx, rating.Admin(), "ns-x", "carol"))

	err := p.DeleteTenant(ctx, rating.Admin(), "carol")
	assert.DeepEqual(t, "delete unknown tenant", rating.IsCode(err, rating.ErrNotFound), true)
	tenants, err := store.TenantsOfNamespace(ctx, "ns-x")
	must.SucceedT(t, err)
	assert.DeepEqual(t, "tenants of ns-x", tenants, []string{"carol"})

	//once the tenant exists, deleting it removes the association too
	must.SucceedT(t, p.CreateTenant(ctx, rating.Admin(), "carol", "secret", nil))
	must.SucceedT(t, p.DeleteTenant(ctx, rating.Admin(), "carol"))
	tenants, err = store.TenantsOfNamespace(ctx, "ns-x")
	must.SucceedT(t, err)
	assert.DeepEqual(t, "tenants of ns-x", len(tenants), 0)
}

func compileExample(t *testing.T, p *processor.Processor) {
	t.Helper()
	ctx := context.Background()
	_, err := p.Rules().AddTemplate(ctx, rating.Admin(), rules.TemplateSpec{
		Name:      "cpu-cost",
		Query:     "sum(cpu) * {price}",
		Variables: []string{"price"},
	})
	must.SucceedT(t, err)
	_, err = p.Rules().Compile(ctx, rating.Admin(), rules.CompileRequest{
		TemplateName: "cpu-cost",
		MetricName:   "rated_cpu",
		Timeframe:    "60s",
		Variables:    rating.Variables{"price": rating.NumberValue(decimal.RequireFromString("0.5"))},
	})
	must.SucceedT(t, err)
}

func TestRulesExposition(t *testing.T) {
	ctx := context.Background()
	p, _, _ := setup(t)
	compileExample(t, p)

	var buf bytes.Buffer
	must.SucceedT(t, p.RulesExposition(ctx, &buf))
	output := buf.String()
	assert.DeepEqual(t, "has TYPE line", strings.Contains(output, "# TYPE rating_rule_info gauge\n"), true)
	assert.DeepEqual(t, "has sample", strings.Contains(output,
		`rating_rule_info{metric_name="rated_cpu",template_name="cpu-cost",timeframe="60s"} 1`), true)

	//deleted instances disappear
	must.SucceedT(t, p.Rules().DeleteInstance(ctx, rating.Admin(), "rated_cpu"))
	buf.Reset()
	must.SucceedT(t, p.RulesExposition(ctx, &buf))
	assert.DeepEqual(t, "output after delete", strings.Contains(buf.String(), "rated_cpu"), false)
}

func TestPreview(t *testing.T) {
	ctx := context.Background()
	p, _, _ := setup(t)
	compileExample(t, p)

	_, err := p.Preview(ctx, rating.Admin(), "rated_cpu")
	assert.DeepEqual(t, "no backend", rating.IsCode(err, rating.ErrValidation), true)

	backend := &fakeBackend{}
	p.WithQueryBackend(backend)
	_, err = p.Preview(ctx, rating.ForTenant("alice", nil), "rated_cpu")
	assert.DeepEqual(t, "tenants cannot preview", rating.IsCode(err, rating.ErrForbidden), true)

	result, err := p.Preview(ctx, rating.Admin(), "rated_cpu")
	must.SucceedT(t, err)
	assert.DeepEqual(t, "queries", backend.Queries, []string{"sum(cpu) * 0.5"})
	assert.DeepEqual(t, "sample count", result.Total, 1)
}
