package vm

import (
	"fmt"
	"sort"

	"github.com/blockberries/blocksim/types"

	"github.com/dop251/goja"
	"github.com/dop251/goja/ast"
	"github.com/dop251/goja/parser"
)

// ArtifactKey is the cache key of code compiled under cfg. Changing
// any VM parameter yields a different key.
func ArtifactKey(codeHash types.CryptoHash, cfg *types.VMConfig) types.CryptoHash {
	buf := append([]byte{}, codeHash[:]...)
	buf = append(buf, types.MustMarshal(cfg)...)
	return types.HashBytes(buf)
}

// Prepare validates contract code and lists its methods. A contract
// exports every top-level function declaration. Preparation failures
// are recorded in the result, not returned, so they can be cached.
func Prepare(code []byte, cfg *types.VMConfig) types.CompiledContract {
	out := types.CompiledContract{Code: append([]byte{}, code...)}
	if cfg.MaxContractSize > 0 && uint64(len(code)) > cfg.MaxContractSize {
		out.Error = fmt.Sprintf("contract size %d exceeds limit %d", len(code), cfg.MaxContractSize)
		return out
	}
	prg, err := goja.Parse("contract.js", string(code), parser.WithDisableSourceMaps)
	if err != nil {
		out.Error = err.Error()
		return out
	}
	if _, err := goja.CompileAST(prg, true); err != nil {
		out.Error = err.Error()
		return out
	}
	out.Methods = exportedMethods(prg)
	return out
}

func exportedMethods(prg *ast.Program) []string {
	var methods []string
	for _, stmt := range prg.Body {
		decl, ok := stmt.(*ast.FunctionDeclaration)
		if !ok || decl.Function == nil || decl.Function.Name == nil {
			continue
		}
		methods = append(methods, string(decl.Function.Name.Name))
	}
	sort.Strings(methods)
	return methods
}
