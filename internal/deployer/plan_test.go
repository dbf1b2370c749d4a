package deployer

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestPlan_Validate(t *testing.T) {
	tests := []struct {
		name    string
		plan    Plan
		wantErr error
	}{
		{
			name: "default",
			plan: DefaultPlan(),
		}, {
			name: "signer and escaped literal",
			plan: Plan{Steps: []Step{
				{Contract: "SpaceRoomManager", Args: []string{"$signer[1]"}},
				{Contract: "Token", Args: []string{"$$SPACE", "100"}},
			}},
		}, {
			name: "same contract twice with ids",
			plan: Plan{Steps: []Step{
				{ID: "Main", Contract: "SpaceRoomManager", Args: []string{"$deployer"}},
				{ID: "Backup", Contract: "SpaceRoomManager", Args: []string{"$deployer"}},
				{Contract: "VotingManager", Args: []string{"$Backup"}},
			}},
		}, {
			name: "fully qualified name",
			plan: Plan{Steps: []Step{
				{Contract: "contracts/legacy/Room.sol:Room"},
				{Contract: "VotingManager", Args: []string{"$Room"}},
			}},
		}, {
			name:    "empty",
			plan:    Plan{},
			wantErr: ErrInvalidPlan,
		}, {
			name:    "missing name",
			plan:    Plan{Steps: []Step{{Args: []string{"$deployer"}}}},
			wantErr: ErrInvalidPlan,
		}, {
			name:    "reference in id",
			plan:    Plan{Steps: []Step{{ID: "$Main", Contract: "SpaceRoomManager"}}},
			wantErr: ErrInvalidPlan,
		}, {
			name: "duplicate",
			plan: Plan{Steps: []Step{
				{Contract: "SpaceRoomManager", Args: []string{"$deployer"}},
				{Contract: "SpaceRoomManager", Args: []string{"$deployer"}},
			}},
			wantErr: ErrInvalidPlan,
		}, {
			name: "forward reference",
			plan: Plan{Steps: []Step{
				{Contract: "VotingManager", Args: []string{"$SpaceRoomManager"}},
				{Contract: "SpaceRoomManager", Args: []string{"$deployer"}},
			}},
			wantErr: ErrUnknownReference,
		}, {
			name: "self reference",
			plan: Plan{Steps: []Step{
				{Contract: "VotingManager", Args: []string{"$VotingManager"}},
			}},
			wantErr: ErrUnknownReference,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.plan.Validate()
			if tt.wantErr != nil {
				require.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
		})
	}
}

func TestPlan_ValidateConcurrent(t *testing.T) {
	plans := []Plan{
		DefaultPlan(),
		{Steps: []Step{{Args: []string{"$deployer"}}}},
	}

	var wg sync.WaitGroup
	errs := make([]error, 32)
	for i := range errs {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			errs[i] = plans[i%len(plans)].Validate()
		}(i)
	}
	wg.Wait()

	for i, err := range errs {
		if i%len(plans) == 0 {
			require.NoError(t, err)
		} else {
			require.ErrorIs(t, err, ErrInvalidPlan)
		}
	}
}

func TestParseReference(t *testing.T) {
	tests := []struct {
		arg    string
		want   reference
		wantOk bool
	}{
		{arg: "$deployer", want: reference{signer: 0}, wantOk: true},
		{arg: "$signer[3]", want: reference{signer: 3}, wantOk: true},
		{arg: "$SpaceRoomManager", want: reference{signer: -1, step: "SpaceRoomManager"}, wantOk: true},
		{arg: "$signer[x]", want: reference{signer: -1, step: "signer[x]"}, wantOk: true},
		{arg: "$$deployer"},
		{arg: "0xf39fd6e51aad88f6f4ce6ab8827279cfffb92266"},
		{arg: ""},
	}
	for _, tt := range tests {
		t.Run(tt.arg, func(t *testing.T) {
			got, ok := parseReference(tt.arg)
			require.Equal(t, tt.wantOk, ok)
			require.Equal(t, tt.want, got)
		})
	}
}

func TestStep_Key(t *testing.T) {
	require.Equal(t, "Room", Step{Contract: "contracts/legacy/Room.sol:Room"}.Key())
	require.Equal(t, "Main", Step{ID: "Main", Contract: "SpaceRoomManager"}.Key())
	require.Equal(t, "VotingManager", Step{Contract: "VotingManager"}.Key())
	require.Equal(t, "$deployer", unescape("$$deployer"))
	require.Equal(t, "100", unescape("100"))
}
