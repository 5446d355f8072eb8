package persist

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"

	"github.com/rotisserie/eris"

	"github.com/lowcarbon-viz/lowcarbon/internal/model"
)

// Meta file names under <out_dir>/meta.
const (
	MetaDir         = "meta"
	DataSourcesFile = "data_sources.json"
	VariableDict    = "variable_dict.json"
	DiagnosticsFile = "diagnostics.json"
)

// DataSources describes where each raw table comes from.
var DataSources = map[string]string{
	"CEADs":       "省级CO₂排放（2003–2019）+ 模型外推2020–2022",
	"国家能源年鉴":      "能源结构与清洁能源比例",
	"住建部/统计局":     "城市绿化数据",
	"统计年鉴":        "GDP与人口",
	"note":        "所有比例已归一化至0–1，字段含义详见 variable_dict.json",
}

// Variables maps output column names to their descriptions.
var Variables = map[string]string{
	"province":                   "省份",
	"year":                       "年份",
	"clean_ratio":                "清洁能源占比",
	"green_rate":                 "建成区绿化覆盖率",
	"emission_per_gdp":           "单位GDP排放",
	"energy_index":               "能源标准化",
	"eco_index":                  "绿化标准化",
	"efficiency_index":           "效率标准化(-z)",
	"synergy_score":              "协同指数",
	"cluster_type":               "聚类类型",
	"Δenergy":                    "清洁能源年变动",
	"Δgreen":                     "绿化率年变动",
	"Δemission":                  "排放强度年变动",
	"predicted_emission_per_gdp": "模型预测值",
}

// writeJSON writes v indented, without HTML escaping. Map keys are sorted
// by encoding/json, so the output is byte-stable.
func writeJSON(path string, v any) error {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		return eris.Wrapf(err, "persist: encode %s", path)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return eris.Wrapf(err, "persist: create dir for %s", path)
	}
	return eris.Wrapf(os.WriteFile(path, buf.Bytes(), 0o644), "persist: write %s", path)
}

// WriteMeta writes the data source notes, the variable dictionary and the
// batch diagnostics under outDir/meta.
func WriteMeta(outDir string, diags model.Diagnostics) error {
	dir := filepath.Join(outDir, MetaDir)
	if err := writeJSON(filepath.Join(dir, DataSourcesFile), DataSources); err != nil {
		return err
	}
	if err := writeJSON(filepath.Join(dir, VariableDict), Variables); err != nil {
		return err
	}
	if diags == nil {
		diags = model.Diagnostics{}
	}
	return writeJSON(filepath.Join(dir, DiagnosticsFile), diags)
}
