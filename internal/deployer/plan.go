package deployer

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/pkg/errors"
)

// errors
var (
	ErrInvalidPlan      = errors.New("invalid deployment plan")
	ErrUnknownReference = errors.New("unknown reference")
)

const (
	referencePrefix   = "$"
	deployerReference = "$deployer"
)

var (
	signerReference = regexp.MustCompile(`^\$signer\[(\d+)\]$`)
	validate        = validator.New()
)

// Step - one contract deployment. Args are literals or references:
//
//	$deployer   - address of the first signer
//	$signer[N]  - address of the N-th signer
//	$<Step>     - address of a contract deployed by an earlier step
//	$$text      - literal `$text`
type Step struct {
	ID       string   `yaml:"id" validate:"omitempty,excludesall=$:/"`
	Contract string   `yaml:"name" validate:"required,excludesall=$"`
	Args     []string `yaml:"args"`
}

// Key - name the step is referenced by and recorded under
func (s Step) Key() string {
	if s.ID != "" {
		return s.ID
	}
	if i := strings.LastIndex(s.Contract, ":"); i >= 0 {
		return s.Contract[i+1:]
	}
	return s.Contract
}

// Plan - ordered deployment steps executed one after another
type Plan struct {
	Steps []Step `yaml:"contracts" validate:"required,min=1,dive"`
}

// DefaultPlan - SpaceRoomManager owned by the deployer, then VotingManager bound to the SpaceRoomManager
func DefaultPlan() Plan {
	return Plan{
		Steps: []Step{
			{Contract: "SpaceRoomManager", Args: []string{deployerReference}},
			{Contract: "VotingManager", Args: []string{"$SpaceRoomManager"}},
		},
	}
}

// Validate - checks step structure and that every reference points to a signer or to an earlier step
func (p Plan) Validate() error {
	if err := validate.Struct(p); err != nil {
		return errors.Wrap(ErrInvalidPlan, err.Error())
	}

	seen := make(map[string]struct{}, len(p.Steps))
	for i, step := range p.Steps {
		key := step.Key()
		if _, ok := seen[key]; ok {
			return errors.Wrapf(ErrInvalidPlan, "step #%d: duplicate name %s, set `id` to deploy a contract twice", i, key)
		}

		for j, arg := range step.Args {
			ref, ok := parseReference(arg)
			if !ok {
				continue
			}
			if ref.signer >= 0 {
				continue
			}
			if _, ok := seen[ref.step]; !ok {
				return errors.Wrapf(ErrUnknownReference, "step %s argument #%d: %s is not deployed before", key, j, arg)
			}
		}
		seen[key] = struct{}{}
	}
	return nil
}

type reference struct {
	signer int
	step   string
}

// parseReference - false for literals
func parseReference(arg string) (reference, bool) {
	if !strings.HasPrefix(arg, referencePrefix) || strings.HasPrefix(arg, referencePrefix+referencePrefix) {
		return reference{}, false
	}
	if arg == deployerReference {
		return reference{signer: 0}, true
	}
	if match := signerReference.FindStringSubmatch(arg); match != nil {
		index, err := strconv.Atoi(match[1])
		if err == nil {
			return reference{signer: index}, true
		}
	}
	return reference{signer: -1, step: strings.TrimPrefix(arg, referencePrefix)}, true
}

func unescape(arg string) string {
	if strings.HasPrefix(arg, referencePrefix+referencePrefix) {
		return arg[1:]
	}
	return arg
}
