package flowstore_test

import (
	"context"
	"database/sql"
	"path/filepath"
	"testing"

	_ "modernc.org/sqlite"

	database "riptide/pkg/batch/database"
	flow "riptide/pkg/batch/flow"
	core "riptide/pkg/batch/job/core"
	flowstore "riptide/pkg/batch/repository/flowstore"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// openTestStore は一時ファイル上の sqlite データベースでストアを組み立てます。
func openTestStore(t *testing.T) *flowstore.SQLStore {
	t.Helper()

	dbPath := filepath.Join(t.TempDir(), "flow_catalog.db")
	db, err := sql.Open("sqlite", dbPath)
	require.NoError(t, err)

	for _, ddl := range []string{
		`CREATE TABLE flow_definitions (
			name        TEXT PRIMARY KEY,
			start_state TEXT NOT NULL,
			definition  TEXT NOT NULL,
			created_at  TIMESTAMP NOT NULL,
			updated_at  TIMESTAMP NOT NULL
		)`,
		`CREATE TABLE flow_states (
			flow_name   TEXT NOT NULL,
			state_name  TEXT NOT NULL,
			kind        TEXT NOT NULL,
			exit_status TEXT NOT NULL DEFAULT '',
			position    INTEGER NOT NULL,
			PRIMARY KEY (flow_name, state_name)
		)`,
		`CREATE TABLE flow_transitions (
			flow_name    TEXT NOT NULL,
			source_state TEXT NOT NULL,
			pattern      TEXT NOT NULL,
			target_state TEXT NOT NULL,
			position     INTEGER NOT NULL,
			PRIMARY KEY (flow_name, source_state, pattern)
		)`,
	} {
		_, err := db.Exec(ddl)
		require.NoError(t, err)
	}

	store := flowstore.NewSQLStore(database.NewSQLDBAdapter(db), "sqlite")
	t.Cleanup(func() { _ = store.Close() })
	return store
}

// buildCatalogGraph は保存対象のグラフを構築します。
func buildCatalogGraph(t *testing.T, name string) *flow.Graph {
	t.Helper()

	resolver := flow.NewStructuralResolver()
	a, err := resolver.ResolveStep("a")
	require.NoError(t, err)
	b, err := resolver.ResolveStep("b")
	require.NoError(t, err)

	builder := flow.NewFlowBuilder(name)
	builder.Define(a).
		On("COMPLETED").To(b).
		On("FAILED").Fail()
	builder.Define(b).
		On("COMPLETED").End()
	builder.Start(a)

	graph, err := builder.Build()
	require.NoError(t, err)
	return graph
}

func TestSQLStore_SaveAndLoad(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	graph := buildCatalogGraph(t, "daily-pipeline")
	require.NoError(t, store.Save(ctx, graph))

	def, err := store.LoadDefinition(ctx, "daily-pipeline")
	require.NoError(t, err)
	assert.Equal(t, "daily-pipeline", def.Name)
	assert.Equal(t, "a", def.Start)
	assert.Len(t, def.States, 4)
	assert.Len(t, def.Transitions, 3)

	restored, err := store.LoadGraph(ctx, "daily-pipeline", flow.NewStructuralResolver())
	require.NoError(t, err)
	assert.True(t, flow.Equal(graph, restored))
}

func TestSQLStore_SaveOverwritesExisting(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	require.NoError(t, store.Save(ctx, buildCatalogGraph(t, "pipeline")))

	// 同名で別の構造を保存すると洗い替えされる
	resolver := flow.NewStructuralResolver()
	only, err := resolver.ResolveStep("only")
	require.NoError(t, err)
	builder := flow.NewFlowBuilder("pipeline")
	builder.Define(only).On("*").End()
	builder.Start(only)
	smaller, err := builder.Build()
	require.NoError(t, err)

	require.NoError(t, store.Save(ctx, smaller))

	def, err := store.LoadDefinition(ctx, "pipeline")
	require.NoError(t, err)
	assert.Equal(t, "only", def.Start)
	assert.Len(t, def.States, 2)
	assert.Len(t, def.Transitions, 1)

	names, err := store.List(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"pipeline"}, names)
}

func TestSQLStore_LoadMissingDefinition(t *testing.T) {
	store := openTestStore(t)

	_, err := store.LoadDefinition(context.Background(), "ghost")
	require.Error(t, err)
	assert.ErrorIs(t, err, flowstore.ErrNotFound)
}

func TestSQLStore_List(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	names, err := store.List(ctx)
	require.NoError(t, err)
	assert.Empty(t, names)

	require.NoError(t, store.Save(ctx, buildCatalogGraph(t, "zeta")))
	require.NoError(t, store.Save(ctx, buildCatalogGraph(t, "alpha")))

	names, err = store.List(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"alpha", "zeta"}, names, "名前順で返されること")
}

func TestSQLStore_Delete(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	require.NoError(t, store.Save(ctx, buildCatalogGraph(t, "doomed")))
	require.NoError(t, store.Delete(ctx, "doomed"))

	_, err := store.LoadDefinition(ctx, "doomed")
	assert.ErrorIs(t, err, flowstore.ErrNotFound)

	// 存在しない定義の削除はエラーにならない
	assert.NoError(t, store.Delete(ctx, "doomed"))
}

// ネストした定義 (Split / サブフロー) も JSON ペイロード経由で往復できる。
func TestSQLStore_NestedDefinitionRoundTrip(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	resolver := flow.NewStructuralResolver()
	first, err := resolver.ResolveStep("first")
	require.NoError(t, err)
	left, err := resolver.ResolveStep("left")
	require.NoError(t, err)
	right, err := resolver.ResolveStep("right")
	require.NoError(t, err)

	split, err := flow.NewSplit("fanout", left, right)
	require.NoError(t, err)

	builder := flow.NewFlowBuilder("nested")
	builder.Define(first).On("COMPLETED").To(split).On("*").Fail()
	builder.Define(split).On("COMPLETED").End().On("*").Fail()
	builder.Start(first)
	graph, err := builder.Build()
	require.NoError(t, err)

	require.NoError(t, store.Save(ctx, graph))

	restored, err := store.LoadGraph(ctx, "nested", flow.NewStructuralResolver())
	require.NoError(t, err)
	require.True(t, flow.Equal(graph, restored))

	state, ok := restored.State("fanout")
	require.True(t, ok)
	splitState, ok := state.(*flow.SplitState)
	require.True(t, ok)
	assert.Len(t, splitState.Branches(), 2)
	assert.Equal(t, core.ExitStatusFailed, splitState.Aggregate([]core.ExitStatus{core.ExitStatusCompleted, core.ExitStatusFailed}))
}
