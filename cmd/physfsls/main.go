// Command physfsls is a thin CLI exercising the vfs library end to
// end: mount one or more sources, then list or print files from the
// merged namespace, in the cobra+pflag shape used throughout rclone's
// cmd/ tree.
package main

import (
	"bufio"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/gophysfs/gophysfs/mount/common"
	"github.com/gophysfs/gophysfs/vfs"

	_ "github.com/gophysfs/gophysfs/backend/flatindex"
	_ "github.com/gophysfs/gophysfs/backend/hierarchical"
	_ "github.com/gophysfs/gophysfs/backend/ziparchive"
)

var (
	mountPoint  string
	prependMode bool
	symlinks    bool
	cacheTime   int
)

// bindFlags declares the options shared by every subcommand directly
// against a *pflag.FlagSet rather than through cobra's own flag
// helpers.
func bindFlags(fs *pflag.FlagSet) {
	fs.StringVar(&mountPoint, "mount-point", "", "VFS mount point for every source")
	fs.BoolVar(&prependMode, "prepend", false, "prepend mounts instead of appending")
	fs.BoolVar(&symlinks, "permit-symlinks", false, "follow symlinks instead of rejecting them")
	fs.IntVar(&cacheTime, "cache-time", common.DefaultOptions().CacheTimeSeconds, "seconds an enumeration answer may be served from cache")
}

func main() {
	root := &cobra.Command{
		Use:   "physfsls <mount-source>... -- <vfs-path>",
		Short: "List or read files from a physfs-style mount stack",
	}
	bindFlags(root.PersistentFlags())

	root.AddCommand(lsCommand(), catCommand())

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "physfsls:", err)
		os.Exit(1)
	}
}

func mustSplit(args []string) (sources []string, target string) {
	for i, a := range args {
		if a == "--" {
			return args[:i], joinRest(args[i+1:])
		}
	}
	if len(args) == 0 {
		return nil, ""
	}
	return args[:len(args)-1], args[len(args)-1]
}

func joinRest(rest []string) string {
	if len(rest) == 0 {
		return ""
	}
	return rest[0]
}

func setupVFS(sources []string) (*vfs.VFS, *vfs.Session, error) {
	v := vfs.NewWithOptions(common.Options{CacheTimeSeconds: cacheTime})
	sess := v.NewSession()
	if err := v.Init(sess, os.Args[0]); err != nil {
		return nil, nil, err
	}
	if err := v.PermitSymbolicLinks(sess, symlinks); err != nil {
		return nil, nil, err
	}
	for _, src := range sources {
		if err := v.Mount(sess, src, mountPoint, !prependMode); err != nil {
			return nil, nil, fmt.Errorf("mount %s: %w", src, err)
		}
	}
	return v, sess, nil
}

func lsCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "ls <sources...> -- <path>",
		Short: "Enumerate the direct children of a VFS path",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			sources, target := mustSplit(args)
			v, sess, err := setupVFS(sources)
			if err != nil {
				return err
			}
			defer v.Deinit(sess)
			names, err := v.EnumerateFiles(sess, target)
			if err != nil {
				return err
			}
			for _, n := range names {
				fmt.Println(n)
			}
			return nil
		},
	}
}

func catCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "cat <sources...> -- <path>",
		Short: "Print a VFS file's contents to stdout",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			sources, target := mustSplit(args)
			v, sess, err := setupVFS(sources)
			if err != nil {
				return err
			}
			defer v.Deinit(sess)
			f, err := v.OpenRead(sess, target)
			if err != nil {
				return err
			}
			defer v.Close(sess, f)
			w := bufio.NewWriter(os.Stdout)
			if _, err := io.Copy(w, readerFunc(f.Read)); err != nil {
				return err
			}
			return w.Flush()
		},
	}
}

// readerFunc adapts File.Read to io.Reader without exposing File's
// other methods to io.Copy.
type readerFunc func(p []byte) (int, error)

func (f readerFunc) Read(p []byte) (int, error) { return f(p) }
