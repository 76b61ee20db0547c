package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/urfave/cli/v2"
	"gopkg.in/yaml.v3"

	jsl "riptide/pkg/batch/job/jsl"
)

var graphCommand = &cli.Command{
	Name:      "graph",
	Usage:     "JSL ファイルから直列化されたグラフ定義を出力する",
	ArgsUsage: "<jsl-file>",
	Description: `JSL ファイルをフローグラフに変換し、直列化された定義 (状態リストと
遷移リスト) を JSON または YAML で出力します。出力された定義はフローカタログに
保存される形式と同じで、構造的に等価なグラフへ復元できます。`,
	Flags: []cli.Flag{
		&cli.StringFlag{
			Name:  "job",
			Usage: "出力するジョブID (省略時はファイル内の唯一のジョブ)",
		},
		&cli.StringFlag{
			Name:  "format",
			Usage: "出力形式 (json, yaml)",
			Value: "json",
		},
		&cli.StringFlag{
			Name:    "output",
			Aliases: []string{"o"},
			Usage:   "出力先ファイル (省略時は標準出力)",
		},
	},
	Action: func(c *cli.Context) error {
		if c.NArg() != 1 {
			return fmt.Errorf("JSL ファイルをひとつ指定してください")
		}

		data, err := os.ReadFile(c.Args().First())
		if err != nil {
			return fmt.Errorf("ファイル '%s' の読み込みに失敗しました: %w", c.Args().First(), err)
		}

		jsl.ResetLoadedJobDefinitions()
		if err := jsl.LoadJSLDefinitionFromBytes(data); err != nil {
			return fmt.Errorf("JSL のロードに失敗しました: %w", err)
		}

		jobID := c.String("job")
		if jobID == "" {
			for id := range jsl.LoadedJobDefinitions {
				jobID = id
			}
		}
		job, ok := jsl.GetJobDefinition(jobID)
		if !ok {
			return fmt.Errorf("ジョブ '%s' が見つかりません", jobID)
		}

		graph, err := jsl.ConvertJSLToGraph(job, jsl.StructuralRegistry(job), nil)
		if err != nil {
			return fmt.Errorf("グラフの構築に失敗しました: %w", err)
		}

		def := graph.Export()
		var out []byte
		switch c.String("format") {
		case "json":
			out, err = json.MarshalIndent(def, "", "  ")
			if err == nil {
				out = append(out, '\n')
			}
		case "yaml":
			out, err = yaml.Marshal(def)
		default:
			return fmt.Errorf("未対応の出力形式: %s", c.String("format"))
		}
		if err != nil {
			return fmt.Errorf("グラフ定義の直列化に失敗しました: %w", err)
		}

		if path := c.String("output"); path != "" {
			return os.WriteFile(path, out, 0o644)
		}
		_, err = c.App.Writer.Write(out)
		return err
	},
}
