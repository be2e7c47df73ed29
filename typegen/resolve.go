package typegen

import (
	"go.bytecodealliance.org/wit"
	"go.uber.org/zap"

	"github.com/wippyai/objgraph/errors"
	"github.com/wippyai/objgraph/typedesc"
)

// FromResolve generates a table for every named type definition in res.
// Types that cannot be mapped, such as strings and resources, are skipped
// and listed by Generator.Skipped.
func FromResolve(res *wit.Resolve) (*Generator, *typedesc.Table, error) {
	g := New()
	for _, td := range res.TypeDefs {
		if td.Name == nil {
			continue
		}
		if _, err := g.Add(td); err != nil {
			Logger().Debug("skipping type", zap.String("name", *td.Name), zap.Error(err))
			g.skipped = append(g.skipped, *td.Name)
		}
	}
	table, err := g.Table()
	if err != nil {
		return g, nil, err
	}
	Logger().Debug("generated table",
		zap.Int("types", table.Len()),
		zap.Int("skipped", len(g.skipped)))
	return g, table, nil
}

// LoadJSON reads the JSON encoding of a WIT resolve (as produced by
// `wasm-tools component wit -j`) and generates its table.
func LoadJSON(path string) (*Generator, *typedesc.Table, error) {
	res, err := wit.LoadJSON(path)
	if err != nil {
		return nil, nil, errors.New(errors.PhaseGenerate, errors.KindInvalidInput).
			Detail("load %s", path).
			Cause(err).
			Build()
	}
	return FromResolve(res)
}
