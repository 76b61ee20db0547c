package main

import (
	"fmt"
	"os"
	"sort"

	"github.com/urfave/cli/v2"

	jsl "riptide/pkg/batch/job/jsl"
)

var validateCommand = &cli.Command{
	Name:      "validate",
	Usage:     "JSL ファイルのフロー定義を検証する",
	ArgsUsage: "<jsl-file>...",
	Description: `JSL ファイルをパースし、フローグラフを構築して構造を検証します。
コンポーネント参照はプレースホルダで解決されるため、実装なしで検証できます。

構造エラー (重複遷移、曖昧な遷移、未定義の遷移先など) は失敗として報告し、
到達不能な状態は警告として報告します。`,
	Action: func(c *cli.Context) error {
		if c.NArg() == 0 {
			return fmt.Errorf("検証する JSL ファイルを指定してください")
		}

		jsl.ResetLoadedJobDefinitions()
		for _, path := range c.Args().Slice() {
			data, err := os.ReadFile(path)
			if err != nil {
				return fmt.Errorf("ファイル '%s' の読み込みに失敗しました: %w", path, err)
			}
			if err := jsl.LoadJSLDefinitionFromBytes(data); err != nil {
				return fmt.Errorf("ファイル '%s' のロードに失敗しました: %w", path, err)
			}
		}

		ids := make([]string, 0, len(jsl.LoadedJobDefinitions))
		for id := range jsl.LoadedJobDefinitions {
			ids = append(ids, id)
		}
		sort.Strings(ids)

		failed := false
		for _, id := range ids {
			job := jsl.LoadedJobDefinitions[id]
			graph, err := jsl.ConvertJSLToGraph(job, jsl.StructuralRegistry(job), nil)
			if err != nil {
				fmt.Fprintf(c.App.ErrWriter, "NG  %s: %v\n", id, err)
				failed = true
				continue
			}
			warnings, err := graph.Validate()
			if err != nil {
				fmt.Fprintf(c.App.ErrWriter, "NG  %s: %v\n", id, err)
				failed = true
				continue
			}
			fmt.Fprintf(c.App.Writer, "OK  %s (states: %d, transitions: %d)\n",
				id, len(graph.States()), len(graph.Transitions()))
			for _, w := range warnings {
				fmt.Fprintf(c.App.Writer, "    warning: %s\n", w)
			}
		}

		if failed {
			return fmt.Errorf("検証に失敗したフロー定義があります")
		}
		return nil
	},
}
