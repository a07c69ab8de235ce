// SPDX-FileCopyrightText: 2024 Smile SA
// SPDX-License-Identifier: Apache-2.0

package rating

import (
	"context"
	"testing"
	"time"

	"github.com/lib/pq"
	"github.com/sapcc/go-bits/assert"
	"github.com/sapcc/go-bits/easypg"
	"github.com/sapcc/go-bits/must"
	"github.com/shopspring/decimal"

	"github.com/Smile-SA/rating-operator-api/internal/models"
)

func TestWhereClause(t *testing.T) {
	where, args := Admin().Restrict(FrameQuery{}).whereClause()
	assert.DeepEqual(t, "admin clause", where, "TRUE")
	assert.DeepEqual(t, "admin arg count", len(args), 0)

	//without readable namespaces, nothing is selected regardless of other filters
	for _, scope := range []Scope{ForTenant("alice", nil), Public()} {
		where, args = scope.Restrict(FrameQuery{Metric: "cpu"}).whereClause()
		assert.DeepEqual(t, "clause for "+scope.String(), where, "FALSE")
		assert.DeepEqual(t, "arg count for "+scope.String(), len(args), 0)
	}

	r := TimeRange{
		Start: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
		End:   time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC),
	}
	q := ForTenant("alice", []string{"ns-b", "ns-a"}).Restrict(FrameQuery{
		Range:     &r,
		Namespace: "ns-a",
		Metric:    "cpu",
	})
	where, args = q.whereClause()
	assert.DeepEqual(t, "tenant clause", where,
		"frame_begin < $1 AND frame_end > $2 AND namespace = ANY($3) AND namespace = $4 AND metric = $5")
	assert.DeepEqual(t, "tenant args", args, []any{r.End, r.Start, pq.Array([]string{"ns-a", "ns-b"}), "ns-a", "cpu"})

	where, args = Admin().Restrict(FrameQuery{Node: "node-1", Pod: "pod-1"}).whereClause()
	assert.DeepEqual(t, "admin filter clause", where, "node = $1 AND pod = $2")
	assert.DeepEqual(t, "admin filter args", args, []any{"node-1", "pod-1"})
}

func storedFrame(begin, namespace, pod, metric, value string) models.Frame {
	b := must.Return(time.Parse(time.RFC3339, begin))
	f := models.Frame{
		FrameBegin: b,
		FrameEnd:   b.Add(time.Hour),
		Namespace:  namespace,
		Node:       "node-" + pod[len(pod)-1:],
		Pod:        pod,
		Metric:     metric,
		Quantity:   1,
	}
	if value != "" {
		f.Price = decimal.NewNullDecimal(decimal.RequireFromString(value))
	}
	return f
}

func frameKeys(frames []models.Frame) []string {
	result := make([]string, len(frames))
	for idx, f := range frames {
		result[idx] = f.FrameBegin.UTC().Format("15:04") + " " + f.Namespace + "/" + f.Pod + "/" + f.Metric
	}
	return result
}

func TestFrameQueriesAgainstDatabase(t *testing.T) {
	ctx := context.Background()
	db := setupDB(t)
	for _, f := range []models.Frame{
		storedFrame("2024-01-01T08:00:00Z", "ns-a", "pod-1", "cpu", ""),
		storedFrame("2024-01-01T10:00:00Z", "ns-a", "pod-1", "cpu", "1.5"),
		storedFrame("2024-01-01T11:00:00Z", "ns-b", "pod-2", "memory", "2"),
	} {
		must.SucceedT(t, db.Insert(&f))
	}
	r := TimeRange{
		Start: time.Date(2024, 1, 1, 9, 30, 0, 0, time.UTC),
		End:   time.Date(2024, 1, 1, 11, 30, 0, 0, time.UTC),
	}
	alice := ForTenant("alice", []string{"ns-a"})

	frames := must.ReturnT(db.SelectFrames(ctx, Admin().Restrict(FrameQuery{Range: &r})))(t)
	assert.DeepEqual(t, "admin frames in range", frameKeys(frames), []string{"10:00 ns-a/pod-1/cpu", "11:00 ns-b/pod-2/memory"})
	assert.DeepEqual(t, "price survives the round trip", frames[0].Price.Decimal.String(), "1.5")

	frames = must.ReturnT(db.SelectFrames(ctx, alice.Restrict(FrameQuery{Range: &r})))(t)
	assert.DeepEqual(t, "tenant frames in range", frameKeys(frames), []string{"10:00 ns-a/pod-1/cpu"})

	frames = must.ReturnT(db.SelectFrames(ctx, ForTenant("bob", nil).Restrict(FrameQuery{})))(t)
	assert.DeepEqual(t, "frames without namespaces", len(frames), 0)

	frames = must.ReturnT(db.SelectFrames(ctx, Admin().Restrict(FrameQuery{Metric: "memory"})))(t)
	assert.DeepEqual(t, "frames by metric", frameKeys(frames), []string{"11:00 ns-b/pod-2/memory"})

	values := must.ReturnT(db.ListDistinctValues(ctx, DimensionNamespace, Admin().Restrict(FrameQuery{})))(t)
	assert.DeepEqual(t, "namespaces", values, []string{"ns-a", "ns-b"})
	values = must.ReturnT(db.ListDistinctValues(ctx, DimensionPod, alice.Restrict(FrameQuery{})))(t)
	assert.DeepEqual(t, "pods of tenant", values, []string{"pod-1"})
	_, err := db.ListDistinctValues(ctx, Dimension("quantity"), Admin().Restrict(FrameQuery{}))
	assert.DeepEqual(t, "invalid dimension", err != nil, true)

	span := must.ReturnT(db.FindFrameSpan(ctx, alice.Restrict(FrameQuery{Pod: "pod-1"})))(t)
	assert.DeepEqual(t, "first frame", span.FirstBegin.Format(time.RFC3339), "2024-01-01T08:00:00Z")
	assert.DeepEqual(t, "last frame", span.LastEnd.Format(time.RFC3339), "2024-01-01T11:00:00Z")

	oldest := must.ReturnT(db.FindOldestFrame(ctx, Admin().Restrict(FrameQuery{Namespace: "ns-b"})))(t)
	assert.DeepEqual(t, "oldest frame", frameKeys([]models.Frame{*oldest}), []string{"11:00 ns-b/pod-2/memory"})
	oldest = must.ReturnT(db.FindOldestFrame(ctx, alice.Restrict(FrameQuery{Namespace: "ns-b"})))(t)
	assert.DeepEqual(t, "oldest foreign frame", oldest, (*models.Frame)(nil))
}

func TestTemplateHistoryAgainstDatabase(t *testing.T) {
	ctx := context.Background()
	db := setupDB(t)
	t1 := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	t2 := t1.Add(time.Hour)

	must.SucceedT(t, db.InsertTemplate(ctx, models.Template{ID: t1, Name: "cpu-cost", Query: "sum(cpu)"}))
	must.SucceedT(t, db.InsertTemplate(ctx, models.Template{ID: t2, Name: "cpu-cost", Query: "sum(cpu) * {price}", VariablesStr: "price"}))
	must.SucceedT(t, db.InsertTemplate(ctx, models.Template{ID: t1, Name: "memory-cost", Query: "sum(memory)"}))

	current := must.ReturnT(db.ListCurrentTemplates(ctx))(t)
	assert.DeepEqual(t, "current template count", len(current), 2)
	assert.DeepEqual(t, "latest cpu-cost version", current[0].Query, "sum(cpu) * {price}")
	assert.DeepEqual(t, "latest memory-cost version", current[1].Query, "sum(memory)")

	tmpl := must.ReturnT(db.FindCurrentTemplate(ctx, "cpu-cost"))(t)
	assert.DeepEqual(t, "variables", tmpl.Variables(), []string{"price"})
	versions := must.ReturnT(db.ListTemplateVersions(ctx, "cpu-cost"))(t)
	assert.DeepEqual(t, "version count", len(versions), 2)

	assert.DeepEqual(t, "deleted versions", must.ReturnT(db.DeleteTemplate(ctx, "cpu-cost"))(t), int64(2))
	tmpl = must.ReturnT(db.FindCurrentTemplate(ctx, "cpu-cost"))(t)
	assert.DeepEqual(t, "deleted template", tmpl, (*models.Template)(nil))
}

func TestInstanceHistoryAgainstDatabase(t *testing.T) {
	ctx := context.Background()
	db := setupDB(t)
	t1 := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	t2 := t1.Add(time.Hour)

	inst := models.Instance{
		MetricName:    "rated_cpu",
		TemplateName:  "cpu-cost",
		Timeframe:     "60s",
		StartTime:     t1,
		VariablesJSON: `{"price":0.5}`,
		ResolvedQuery: "sum(cpu) * 0.5",
	}
	must.SucceedT(t, db.ReplaceOpenInstance(ctx, inst))
	inst.StartTime = t2
	inst.VariablesJSON = `{"price":1}`
	inst.ResolvedQuery = "sum(cpu) * 1"
	must.SucceedT(t, db.ReplaceOpenInstance(ctx, inst))

	//the previous version was closed when the new one took over
	versions := must.ReturnT(db.ListInstanceVersions(ctx, "rated_cpu"))(t)
	assert.DeepEqual(t, "version count", len(versions), 2)
	assert.DeepEqual(t, "newest is open", versions[0].IsOpen(), true)
	assert.DeepEqual(t, "oldest closed at takeover", versions[1].EndTime.Equal(t2), true)

	open := must.ReturnT(db.FindOpenInstance(ctx, "rated_cpu"))(t)
	assert.DeepEqual(t, "open version", open.ResolvedQuery, "sum(cpu) * 1")
	assert.DeepEqual(t, "open instances", len(must.ReturnT(db.ListOpenInstances(ctx))(t)), 1)
	assert.DeepEqual(t, "open for template", must.ReturnT(db.CountOpenInstancesForTemplate(ctx, "cpu-cost"))(t), int64(1))

	assert.DeepEqual(t, "closed", must.ReturnT(db.CloseInstance(ctx, "rated_cpu", t2.Add(time.Hour)))(t), int64(1))
	assert.DeepEqual(t, "closed twice", must.ReturnT(db.CloseInstance(ctx, "rated_cpu", t2.Add(time.Hour)))(t), int64(0))
	open = must.ReturnT(db.FindOpenInstance(ctx, "rated_cpu"))(t)
	assert.DeepEqual(t, "no open version", open, (*models.Instance)(nil))
}

func TestTenantsAgainstDatabase(t *testing.T) {
	ctx := context.Background()
	db := setupDB(t)

	must.SucceedT(t, db.InsertUser(ctx, models.User{TenantID: "alice", PasswordHash: "x"}, []string{"finance"}))
	must.SucceedT(t, db.InsertUser(ctx, models.User{TenantID: "bob", PasswordHash: "x"}, []string{"finance"}))
	must.ReturnT(db.AssociateNamespace(ctx, "ns-a", "alice", false))(t)
	must.ReturnT(db.AssociateNamespace(ctx, "shared", "alice", false))(t)
	must.ReturnT(db.AssociateNamespace(ctx, "shared", "bob", false))(t)

	members := must.ReturnT(db.MembersOfGroups(ctx, []string{"finance"}))(t)
	assert.DeepEqual(t, "members", members, []string{"alice", "bob"})
	namespaces := must.ReturnT(db.NamespacesOfTenants(ctx, members))(t)
	assert.DeepEqual(t, "namespaces of group", namespaces, []string{"ns-a", "shared"})

	//exclusive association removes all other tenants
	assert.DeepEqual(t, "exclusive link", must.ReturnT(db.AssociateNamespace(ctx, "shared", "carol", true))(t), int64(3))
	tenants := must.ReturnT(db.TenantsOfNamespace(ctx, "shared"))(t)
	assert.DeepEqual(t, "tenants of shared", tenants, []string{"carol"})

	//carol has no credentials, so deleting her is a no-op
	tr, _ := easypg.NewTracker(t, db.Db)
	assert.DeepEqual(t, "delete unknown", must.ReturnT(db.DeleteUser(ctx, "carol"))(t), int64(0))
	tr.DBChanges().AssertEmpty()

	assert.DeepEqual(t, "delete alice", must.ReturnT(db.DeleteUser(ctx, "alice"))(t), int64(1))
	assert.DeepEqual(t, "alice's groups", len(must.ReturnT(db.GroupsOfTenant(ctx, "alice"))(t)), 0)
	assert.DeepEqual(t, "alice's namespaces", len(must.ReturnT(db.NamespacesOfTenants(ctx, []string{"alice"}))(t)), 0)
	assert.DeepEqual(t, "bob's groups", must.ReturnT(db.GroupsOfTenant(ctx, "bob"))(t), []string{"finance"})
}
