package artifact

import (
	"os"
	"strings"

	"github.com/goccy/go-json"
	"github.com/pkg/errors"
)

// errors
var (
	ErrUnknownContract   = errors.New("unknown contract")
	ErrAmbiguousContract = errors.New("ambiguous contract name")
	ErrNoBytecode        = errors.New("contract has no creation bytecode")
	ErrUnlinked          = errors.New("bytecode has unlinked libraries")
	ErrArgumentCount     = errors.New("constructor argument count mismatch")
	ErrInvalidArgument   = errors.New("invalid constructor argument")
	ErrUnsupportedType   = errors.New("unsupported constructor argument type")
)

const (
	formatHardhat  = "hh-sol-artifact-1"
	debugFileExt   = ".dbg.json"
	buildInfoDir   = "build-info"
	linkMarkPrefix = "__$"
)

// Artifact - compiled contract as written by Hardhat into `artifacts/<source>.sol/<Name>.json`
type Artifact struct {
	Format                 string          `json:"_format"`
	ContractName           string          `json:"contractName"`
	SourceName             string          `json:"sourceName"`
	ABI                    json.RawMessage `json:"abi"`
	Bytecode               string          `json:"bytecode"`
	DeployedBytecode       string          `json:"deployedBytecode"`
	LinkReferences         LinkReferences  `json:"linkReferences"`
	DeployedLinkReferences LinkReferences  `json:"deployedLinkReferences"`
}

// LinkReferences - source name -> library name -> placeholder positions
type LinkReferences map[string]map[string][]LinkReference

// LinkReference -
type LinkReference struct {
	Start  int `json:"start"`
	Length int `json:"length"`
}

// FullyQualifiedName - `<source>:<contract>`, the name Hardhat uses to disambiguate contracts
func (a Artifact) FullyQualifiedName() string {
	return a.SourceName + ":" + a.ContractName
}

// IsLinked - false if creation bytecode still contains library placeholders
func (a Artifact) IsLinked() bool {
	return len(a.LinkReferences) == 0 && !strings.Contains(a.Bytecode, linkMarkPrefix)
}

// Load - reads and decodes an artifact file
func Load(path string) (Artifact, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return Artifact{}, err
	}
	return Decode(raw)
}

// Decode -
func Decode(raw []byte) (a Artifact, err error) {
	if err = json.Unmarshal(raw, &a); err != nil {
		return a, errors.Wrap(err, "decode artifact")
	}
	if a.ContractName == "" {
		return a, errors.New("artifact without contract name")
	}
	if a.Format != "" && a.Format != formatHardhat {
		return a, errors.Errorf("unsupported artifact format: %s", a.Format)
	}
	return a, nil
}
