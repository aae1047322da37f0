// Command ssmgrd is a small demo CLI wiring ssmod against memstore, for
// manual exploration and smoke-testing without a real host chain.
//
// Grounded on cmd/warren/main.go in cuemby-warren: a cobra root command
// with one subcommand tree per concern, flags parsed per-command, plain
// fmt.Printf status lines -- the same shape, scaled down to this
// module's single in-process demo session instead of a client/manager
// RPC split.
package main

import (
	"encoding/hex"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/teris-io/shortid"

	"github.com/ssmgr/ssmgr/cluster"
	"github.com/ssmgr/ssmgr/cmn/log"
	"github.com/ssmgr/ssmgr/memstore"
	"github.com/ssmgr/ssmgr/ssmod"
)

// session holds the single in-process demo chain state for the lifetime
// of one CLI invocation tree.
type session struct {
	store  *memstore.Store
	module *ssmod.Module
}

var demo *session

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "ssmgrd",
	Short: "Demo coordination layer for a distributed secret-store key-server cluster",
}

func init() {
	cobra.OnInitialize(func() {
		log.Init(log.Config{Level: "info"})
	})
	rootCmd.AddCommand(initCmd, keyServerCmd, migrationCmd, keyCmd, snapshotCmd, idCmd)
}

// idCmd generates a short, human-typeable id and pads it into the
// fixed-width id space, for operators wiring up a genesis set or a
// migration by hand instead of scripting raw hex.
var idCmd = &cobra.Command{
	Use:   "id",
	Short: "Generate a short human-readable id usable as an entity, key, or migration id",
	RunE: func(cmd *cobra.Command, args []string) error {
		sid, err := shortid.Generate()
		if err != nil {
			return err
		}
		fmt.Printf("%s (%s)\n", sid, mustEntityID(sid))
		return nil
	},
}

var initCmd = &cobra.Command{
	Use:   "init OWNER ID:ADDR [ID:ADDR...]",
	Short: "Initialize the demo chain with a genesis owner and key-server set",
	Args:  cobra.MinimumNArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		owner := cluster.AccountId(args[0])
		var genesis []cluster.KeyServerEntry
		for _, spec := range args[1:] {
			id, addr, err := parseIDAddr(spec)
			if err != nil {
				return err
			}
			genesis = append(genesis, cluster.KeyServerEntry{ID: id, Record: cluster.KeyServerRecord{Address: addr}})
		}

		store := memstore.New(owner, genesis)
		seedClaims := map[cluster.AccountId]cluster.EntityId{owner: mustEntityID(args[0])}
		module, err := ssmod.New(store, ssmod.GenesisConfig{
			Owner:                     owner,
			IsInitializationCompleted: true,
			SeedClaims:                seedClaims,
		})
		if err != nil {
			return err
		}
		demo = &session{store: store, module: module}
		fmt.Printf("initialized chain: owner=%s key-servers=%d\n", owner, len(genesis))
		return nil
	},
}

var keyServerCmd = &cobra.Command{
	Use:   "key-server",
	Short: "Admin operations on the new key-server set",
}

var addKeyServerCmd = &cobra.Command{
	Use:   "add OWNER ID ADDR",
	Short: "Add a key server to the new set",
	Args:  cobra.ExactArgs(3),
	RunE: func(cmd *cobra.Command, args []string) error {
		if demo == nil {
			return fmt.Errorf("run 'ssmgrd init' first")
		}
		id := mustEntityID(args[1])
		err := demo.module.AddKeyServer(cluster.AccountId(args[0]), id, cluster.NetworkAddress(args[2]))
		if err != nil {
			return err
		}
		fmt.Printf("added key server %s at %s\n", id, args[2])
		return nil
	},
}

func init() {
	keyServerCmd.AddCommand(addKeyServerCmd)
}

var migrationCmd = &cobra.Command{
	Use:   "migration",
	Short: "Migration lifecycle operations",
}

var startMigrationCmd = &cobra.Command{
	Use:   "start ORIGIN MIGRATION_ID",
	Short: "Start a migration",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		if demo == nil {
			return fmt.Errorf("run 'ssmgrd init' first")
		}
		if err := demo.module.StartMigration(cluster.AccountId(args[0]), mustMigrationID(args[1])); err != nil {
			return err
		}
		fmt.Println("migration started")
		return nil
	},
}

var confirmMigrationCmd = &cobra.Command{
	Use:   "confirm ORIGIN MIGRATION_ID",
	Short: "Confirm a migration",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		if demo == nil {
			return fmt.Errorf("run 'ssmgrd init' first")
		}
		if err := demo.module.ConfirmMigration(cluster.AccountId(args[0]), mustMigrationID(args[1])); err != nil {
			return err
		}
		fmt.Println("migration confirmed")
		return nil
	},
}

func init() {
	migrationCmd.AddCommand(startMigrationCmd, confirmMigrationCmd)
}

var keyCmd = &cobra.Command{
	Use:   "key",
	Short: "Service-request operations",
}

var generateKeyCmd = &cobra.Command{
	Use:   "generate ORIGIN KEY THRESHOLD",
	Short: "Request generation of a server key",
	Args:  cobra.ExactArgs(3),
	RunE: func(cmd *cobra.Command, args []string) error {
		if demo == nil {
			return fmt.Errorf("run 'ssmgrd init' first")
		}
		var threshold uint8
		if _, err := fmt.Sscanf(args[2], "%d", &threshold); err != nil {
			return fmt.Errorf("invalid threshold: %w", err)
		}
		key := mustServerKeyID(args[1])
		if err := demo.module.GenerateServerKey(cluster.AccountId(args[0]), key, threshold); err != nil {
			return err
		}
		fmt.Printf("generation requested for key %s\n", key)
		return nil
	},
}

func init() {
	keyCmd.AddCommand(generateKeyCmd)
}

var snapshotCmd = &cobra.Command{
	Use:   "snapshot",
	Short: "Print the current key-server set snapshot and pending events",
	RunE: func(cmd *cobra.Command, args []string) error {
		if demo == nil {
			return fmt.Errorf("run 'ssmgrd init' first")
		}
		snap := demo.module.KeyServerSetSnapshot()
		fmt.Printf("current set (%d members):\n", len(snap.Current))
		for _, e := range snap.Current {
			fmt.Printf("  %s @ %s (index %d)\n", e.ID, e.Record.Address, e.Record.Index)
		}
		if snap.Migration != nil {
			fmt.Printf("migration %s in progress, master=%s, confirmed=%d/%d\n",
				snap.Migration.ID, snap.Migration.Master, len(snap.Migration.Confirmed), len(snap.Migration.Set))
		}
		for _, ev := range demo.store.EventLog().Drain() {
			fmt.Printf("event: %T\n", ev)
		}
		return nil
	},
}

func parseIDAddr(spec string) (cluster.EntityId, cluster.NetworkAddress, error) {
	idx := -1
	for i, c := range spec {
		if c == ':' {
			idx = i
			break
		}
	}
	if idx < 0 {
		return cluster.EntityId{}, nil, fmt.Errorf("expected ID:ADDR, got %q", spec)
	}
	return mustEntityID(spec[:idx]), cluster.NetworkAddress(spec[idx+1:]), nil
}

func mustEntityID(s string) cluster.EntityId {
	var id cluster.EntityId
	b, err := hex.DecodeString(s)
	if err != nil || len(b) != len(id) {
		// Demo convenience: short human-readable names are copied into the
		// fixed-width id space (zero-padded, truncated past 32 bytes)
		// rather than rejected outright.
		copy(id[:], s)
		return id
	}
	copy(id[:], b)
	return id
}

func mustServerKeyID(s string) cluster.ServerKeyId {
	id := mustEntityID(s)
	return cluster.ServerKeyId(id)
}

func mustMigrationID(s string) cluster.MigrationId {
	id := mustEntityID(s)
	return cluster.MigrationId(id)
}
