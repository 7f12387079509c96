// CLI for operating on Holvi datastores
package holviclient

import (
	"context"
	"fmt"
	"io/ioutil"
	"os"
	"sort"
	"time"

	"github.com/function61/gokit/logex"
	"github.com/function61/gokit/osutil"
	"github.com/holvi-fs/holvi/pkg/dstore"
	"github.com/holvi-fs/holvi/pkg/holvitypes"
	"github.com/holvi-fs/holvi/pkg/signing"
	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"
)

func Entrypoints() []*cobra.Command {
	return []*cobra.Command{
		configInitEntrypoint(),
		configPrintEntrypoint(),
		keygenEntrypoint(),
		datastoreEntrypoint(),
		mkdirEntrypoint(),
		rmdirEntrypoint(),
		rmtreeEntrypoint(),
		lsEntrypoint(),
		putEntrypoint(),
		catEntrypoint(),
		rmEntrypoint(),
		statEntrypoint(),
		inodeEntrypoint(),
		devicesEntrypoint(),
	}
}

func keygenEntrypoint() *cobra.Command {
	return &cobra.Command{
		Use:   "keygen [keyPath]",
		Short: "Generates an owner private key",
		Args:  cobra.ExactArgs(1),
		Run: func(cmd *cobra.Command, args []string) {
			osutil.ExitIfError(func() error {
				privKeyPem, err := signing.GenEcP256PrivateKeyPem()
				if err != nil {
					return err
				}

				return ioutil.WriteFile(args[0], privKeyPem, 0600)
			}())
		},
	}
}

func datastoreEntrypoint() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "datastore",
		Short: "Datastore lifecycle",
	}

	collection := false

	create := &cobra.Command{
		Use:   "create",
		Short: "Creates a datastore owned by the configured key",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			withSession(func(ctx context.Context, sess *session) error {
				kind := holvitypes.DatastoreKindTree
				if collection {
					kind = holvitypes.DatastoreKindCollection
				}

				driverNames := []string{}
				for _, driverConf := range sess.conf.Drivers {
					driverNames = append(driverNames, driverConf.Name)
				}

				store, err := dstore.CreateDatastore(ctx, dstore.Config{
					Drivers:       sess.drivers,
					DeviceIDs:     []string{sess.conf.LocalDeviceID},
					LocalDeviceID: sess.conf.LocalDeviceID,
					Custody:       sess.custody,
					VersionLog:    sess.reg,
					Registry:      sess.reg,
					Logger:        sess.logger,
				}, kind, driverNames)
				if err != nil {
					return err
				}

				fmt.Println(store.Datastore().ID)
				return nil
			})
		},
	}
	create.Flags().BoolVarP(&collection, "collection", "", collection, "Create a flat collection instead of a directory tree")

	force := false

	rm := &cobra.Command{
		Use:   "rm",
		Short: "Deletes the datastore and everything in it",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			withStore(func(ctx context.Context, store *dstore.Store) error {
				return store.DeleteDatastore(ctx, force)
			})
		},
	}
	rm.Flags().BoolVarP(&force, "force", "f", force, "Proceed even if emptying the tree fails")

	ls := &cobra.Command{
		Use:   "ls",
		Short: "Lists locally known datastores",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			withSession(func(ctx context.Context, sess *session) error {
				datastores, err := sess.reg.ListDatastores()
				if err != nil {
					return err
				}

				tbl := tablewriter.NewWriter(os.Stdout)
				tbl.SetHeader([]string{"ID", "Kind", "Created"})

				for _, ds := range datastores {
					tbl.Append([]string{ds.ID, string(ds.Kind), ds.Created.Format(time.RFC3339)})
				}

				tbl.Render()
				return nil
			})
		},
	}

	cmd.AddCommand(create)
	cmd.AddCommand(rm)
	cmd.AddCommand(ls)

	return cmd
}

func mkdirEntrypoint() *cobra.Command {
	force := false

	cmd := &cobra.Command{
		Use:   "mkdir [path]",
		Short: "Creates a directory",
		Args:  cobra.ExactArgs(1),
		Run: func(cmd *cobra.Command, args []string) {
			withStore(func(ctx context.Context, store *dstore.Store) error {
				return store.Mkdir(ctx, args[0], force)
			})
		},
	}
	cmd.Flags().BoolVarP(&force, "force", "f", force, "Bypass staleness/tombstone checks")

	return cmd
}

func rmdirEntrypoint() *cobra.Command {
	force := false

	cmd := &cobra.Command{
		Use:   "rmdir [path]",
		Short: "Removes an empty directory",
		Args:  cobra.ExactArgs(1),
		Run: func(cmd *cobra.Command, args []string) {
			withStore(func(ctx context.Context, store *dstore.Store) error {
				return store.Rmdir(ctx, args[0], force)
			})
		},
	}
	cmd.Flags().BoolVarP(&force, "force", "f", force, "Bypass staleness/tombstone checks")

	return cmd
}

func rmtreeEntrypoint() *cobra.Command {
	force := false

	cmd := &cobra.Command{
		Use:   "rmtree [path]",
		Short: "Recursively deletes a subtree",
		Args:  cobra.ExactArgs(1),
		Run: func(cmd *cobra.Command, args []string) {
			withStore(func(ctx context.Context, store *dstore.Store) error {
				result, err := store.Rmtree(ctx, args[0], force)
				if err != nil {
					// report completed work so a retry can be judged
					fmt.Fprintf(os.Stderr, "tombstoned %d inode(s) before failing\n", len(result.Tombstoned))
					return err
				}

				return nil
			})
		},
	}
	cmd.Flags().BoolVarP(&force, "force", "f", force, "Continue past stale/tombstoned descendants")

	return cmd
}

func lsEntrypoint() *cobra.Command {
	force := false

	cmd := &cobra.Command{
		Use:   "ls [path]",
		Short: "Lists a directory",
		Args:  cobra.ExactArgs(1),
		Run: func(cmd *cobra.Command, args []string) {
			withStore(func(ctx context.Context, store *dstore.Store) error {
				entries, err := store.ListDir(ctx, args[0], force)
				if err != nil {
					return err
				}

				tbl := tablewriter.NewWriter(os.Stdout)
				tbl.SetHeader([]string{"Name", "Kind", "UUID"})

				for _, name := range sortedNames(entries) {
					tbl.Append([]string{name, string(entries[name].Kind), entries[name].UUID})
				}

				tbl.Render()
				return nil
			})
		},
	}
	cmd.Flags().BoolVarP(&force, "force", "f", force, "Bypass staleness/tombstone checks")

	return cmd
}

func putEntrypoint() *cobra.Command {
	create := false
	force := false

	cmd := &cobra.Command{
		Use:   "put [path] [localFile]",
		Short: "Writes a file from disk (or stdin with \"-\") into the datastore",
		Args:  cobra.ExactArgs(2),
		Run: func(cmd *cobra.Command, args []string) {
			withStore(func(ctx context.Context, store *dstore.Store) error {
				var content []byte
				var err error

				if args[1] == "-" {
					content, err = ioutil.ReadAll(os.Stdin)
				} else {
					content, err = ioutil.ReadFile(args[1])
				}
				if err != nil {
					return err
				}

				inode, err := store.PutFile(ctx, args[0], content, create, force)
				if err != nil {
					return err
				}

				fmt.Printf("%s version %d\n", inode.UUID, inode.Version)
				return nil
			})
		},
	}
	cmd.Flags().BoolVarP(&create, "create", "c", create, "Fail if the file already exists")
	cmd.Flags().BoolVarP(&force, "force", "f", force, "Bypass staleness/tombstone checks")

	return cmd
}

func catEntrypoint() *cobra.Command {
	force := false

	cmd := &cobra.Command{
		Use:   "cat [path]",
		Short: "Prints a file's content",
		Args:  cobra.ExactArgs(1),
		Run: func(cmd *cobra.Command, args []string) {
			withStore(func(ctx context.Context, store *dstore.Store) error {
				content, err := store.GetFile(ctx, args[0], force)
				if err != nil {
					return err
				}

				_, err = os.Stdout.Write(content)
				return err
			})
		},
	}
	cmd.Flags().BoolVarP(&force, "force", "f", force, "Bypass staleness/tombstone checks")

	return cmd
}

func rmEntrypoint() *cobra.Command {
	force := false

	cmd := &cobra.Command{
		Use:   "rm [path]",
		Short: "Deletes a file",
		Args:  cobra.ExactArgs(1),
		Run: func(cmd *cobra.Command, args []string) {
			withStore(func(ctx context.Context, store *dstore.Store) error {
				return store.DeleteFile(ctx, args[0], force)
			})
		},
	}
	cmd.Flags().BoolVarP(&force, "force", "f", force, "Bypass staleness/tombstone checks")

	return cmd
}

func statEntrypoint() *cobra.Command {
	force := false

	cmd := &cobra.Command{
		Use:   "stat [path]",
		Short: "Shows inode metadata",
		Args:  cobra.ExactArgs(1),
		Run: func(cmd *cobra.Command, args []string) {
			withStore(func(ctx context.Context, store *dstore.Store) error {
				inode, err := store.Stat(ctx, args[0], force)
				if err != nil {
					return err
				}

				printInode(inode)
				return nil
			})
		},
	}
	cmd.Flags().BoolVarP(&force, "force", "f", force, "Bypass staleness/tombstone checks")

	return cmd
}

func inodeEntrypoint() *cobra.Command {
	withPayload := false
	force := false

	cmd := &cobra.Command{
		Use:   "inode [uuid]",
		Short: "Fetches an inode directly by UUID",
		Args:  cobra.ExactArgs(1),
		Run: func(cmd *cobra.Command, args []string) {
			withStore(func(ctx context.Context, store *dstore.Store) error {
				inode, err := store.GetInode(ctx, args[0], withPayload, force)
				if err != nil {
					return err
				}

				printInode(inode)

				if withPayload && inode.Kind == holvitypes.InodeKindFile {
					os.Stdout.Write(inode.File.Content)
				}

				return nil
			})
		},
	}
	cmd.Flags().BoolVarP(&withPayload, "payload", "p", withPayload, "Include file content")
	cmd.Flags().BoolVarP(&force, "force", "f", force, "Bypass staleness/tombstone checks")

	return cmd
}

func devicesEntrypoint() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "devices",
		Short: "Datastore device set",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "ls",
		Short: "Lists the datastore's authorized device IDs",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			withStore(func(ctx context.Context, store *dstore.Store) error {
				for _, deviceID := range store.DeviceIDs() {
					fmt.Println(deviceID)
				}

				return nil
			})
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "set [deviceID...]",
		Short: "Replaces the device set (membership is configuration, not negotiated)",
		Args:  cobra.MinimumNArgs(1),
		Run: func(cmd *cobra.Command, args []string) {
			withSession(func(ctx context.Context, sess *session) error {
				id, err := sess.datastoreID()
				if err != nil {
					return err
				}

				return sess.reg.SetDeviceIDs(id, args)
			})
		},
	})

	return cmd
}

func withSession(fn func(ctx context.Context, sess *session) error) {
	sess, err := newSession()
	osutil.ExitIfError(err)
	defer sess.Close()

	exitIfOpError(fn(osutil.CancelOnInterruptOrTerminate(logex.StandardLogger()), sess))
}

func withStore(fn func(ctx context.Context, store *dstore.Store) error) {
	withSession(func(ctx context.Context, sess *session) error {
		store, err := sess.store()
		if err != nil {
			return err
		}

		return fn(ctx, store)
	})
}

func printInode(inode *holvitypes.Inode) {
	fmt.Printf("uuid:     %s\nkind:     %s\nversion:  %d\ndevice:   %s\nparent:   %s\n",
		inode.UUID, inode.Kind, inode.Version, inode.DeviceID, inode.ParentUUID)

	if inode.Kind == holvitypes.InodeKindFile {
		fmt.Printf("size:     %d\nsha256:   %x\n", inode.File.Size, inode.File.Sha256)
	} else {
		fmt.Printf("entries:  %d\n", len(inode.Directory.Entries))
	}
}

func sortedNames(entries map[string]holvitypes.DirEntry) []string {
	names := []string{}
	for name := range entries {
		names = append(names, name)
	}

	sort.Strings(names)

	return names
}
