package flowstore

import (
	"context"

	flow "riptide/pkg/batch/flow"
)

// Store はフロー定義カタログへの永続化のインターフェースです。
// グラフは flow.Definition に直列化して保存し、ロード時に
// flow.FromDefinition で構造的に等価なグラフへ復元します。
type Store interface {
	// Save はグラフの定義を保存します。同名の定義は上書きされます。
	Save(ctx context.Context, graph *flow.Graph) error
	// LoadDefinition は保存された定義を名前で取得します。
	LoadDefinition(ctx context.Context, name string) (flow.Definition, error)
	// LoadGraph は保存された定義からグラフを復元します。
	LoadGraph(ctx context.Context, name string, resolver flow.ComponentResolver) (*flow.Graph, error)
	// List は保存されている定義の名前を返します。
	List(ctx context.Context) ([]string, error)
	// Delete は定義を削除します。存在しない場合もエラーにしません。
	Delete(ctx context.Context, name string) error
	Close() error
}
