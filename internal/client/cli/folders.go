package cli

import (
	"context"
	"fmt"
	"text/tabwriter"

	fkgrpc "github.com/dmitrijs2005/filekeeper/internal/server/grpc"
)

func (a *App) printFolders(folders []*fkgrpc.Folder) {
	tw := tabwriter.NewWriter(a.out, 0, 4, 2, ' ', 0)
	for _, d := range folders {
		fmt.Fprintf(tw, "%s\t%s\t<dir>\t\t%s\n", d.ID, d.Path, d.AccessLevel)
	}
	tw.Flush()
}

func (a *App) mkdir(ctx context.Context, args []string) error {
	d, err := a.conn().CreateFolder(ctx, &fkgrpc.CreateFolderRequest{Name: args[0], ParentID: optional(args, 1)})
	if err != nil {
		return err
	}
	fmt.Fprintf(a.out, "Created %s %s\n", d.ID, d.Path)
	return nil
}

func (a *App) rmdir(ctx context.Context, args []string) error {
	if err := a.conn().DeleteFolder(ctx, args[0]); err != nil {
		return err
	}
	fmt.Fprintln(a.out, "Deleted", args[0])
	return nil
}

func (a *App) renameFolder(ctx context.Context, args []string) error {
	d, err := a.conn().UpdateFolder(ctx, &fkgrpc.UpdateFolderRequest{FolderID: args[0], Name: &args[1]})
	if err != nil {
		return err
	}
	fmt.Fprintf(a.out, "%s is now %s\n", d.ID, d.Path)
	return nil
}

func (a *App) shareFolder(ctx context.Context, args []string) error {
	d, err := a.conn().ShareFolder(ctx, args[0], args[1], args[2])
	if err != nil {
		return err
	}
	fmt.Fprintf(a.out, "%s shared with %s (%s)\n", d.Path, args[1], args[2])
	return nil
}
