package cli

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/dmitrijs2005/filekeeper/internal/netx"
	fkgrpc "github.com/dmitrijs2005/filekeeper/internal/server/grpc"
)

func optional(args []string, i int) *string {
	if len(args) <= i {
		return nil
	}
	return &args[i]
}

func (a *App) printFiles(files []*fkgrpc.File) {
	tw := tabwriter.NewWriter(a.out, 0, 4, 2, ' ', 0)
	for _, f := range files {
		fmt.Fprintf(tw, "%s\t%s\tv%d\t%d\t%s\n", f.ID, f.Name, f.Version, f.Size, f.AccessLevel)
	}
	tw.Flush()
}

func (a *App) printFile(f *fkgrpc.File) {
	tw := tabwriter.NewWriter(a.out, 0, 4, 2, ' ', 0)
	fmt.Fprintf(tw, "ID:\t%s\n", f.ID)
	fmt.Fprintf(tw, "Name:\t%s\n", f.Name)
	fmt.Fprintf(tw, "Owner:\t%s\n", f.OwnerID)
	fmt.Fprintf(tw, "Type:\t%s\n", f.MediaType)
	fmt.Fprintf(tw, "Size:\t%d\n", f.Size)
	fmt.Fprintf(tw, "Checksum:\t%s\n", f.Checksum)
	fmt.Fprintf(tw, "Version:\t%d\n", f.Version)
	fmt.Fprintf(tw, "Access:\t%s\n", f.AccessLevel)
	if len(f.Tags) > 0 {
		fmt.Fprintf(tw, "Tags:\t%s\n", strings.Join(f.Tags, ", "))
	}
	for k, v := range f.Metadata {
		fmt.Fprintf(tw, "Meta %s:\t%s\n", k, v)
	}
	for _, g := range f.SharedWith {
		fmt.Fprintf(tw, "Shared:\t%s (%s)\n", g.UserID, g.Permission)
	}
	for _, v := range f.PreviousVersions {
		fmt.Fprintf(tw, "History:\tv%d %d bytes %s\n", v.Version, v.Size, v.CreatedAt.Format(time.RFC3339))
	}
	tw.Flush()
}

func (a *App) list(ctx context.Context, args []string) error {
	folderID := optional(args, 0)

	folders, err := a.conn().ListFolders(ctx, folderID)
	if err != nil {
		return err
	}
	files, err := a.conn().ListFiles(ctx, &fkgrpc.ListFilesRequest{FolderID: folderID})
	if err != nil {
		return err
	}

	if len(folders) == 0 && len(files) == 0 {
		fmt.Fprintln(a.out, "(empty)")
		return nil
	}
	a.printFolders(folders)
	a.printFiles(files)
	return nil
}

func (a *App) put(ctx context.Context, args []string) error {
	f, err := os.Open(args[0])
	if err != nil {
		return err
	}
	defer f.Close()

	resp, err := a.conn().Upload(ctx, fkgrpc.UploadHeader{
		FolderID:     optional(args, 1),
		OriginalName: filepath.Base(args[0]),
	}, f)
	if err != nil {
		return err
	}

	if resp.Deduplicated {
		fmt.Fprintf(a.out, "Identical content already stored as %s\n", resp.File.ID)
		return nil
	}
	fmt.Fprintf(a.out, "Uploaded %s (%d bytes)\n", resp.File.ID, resp.File.Size)
	return nil
}

func (a *App) putVersion(ctx context.Context, args []string) error {
	f, err := os.Open(args[1])
	if err != nil {
		return err
	}
	defer f.Close()

	file, err := a.conn().UploadVersion(ctx, fkgrpc.VersionHeader{
		FileID:       args[0],
		OriginalName: filepath.Base(args[1]),
	}, f)
	if err != nil {
		return err
	}
	fmt.Fprintf(a.out, "%s is now at version %d\n", file.ID, file.Version)
	return nil
}

// get downloads into dest, or into the file's name in the working
// directory. A partial file is removed on failure.
func (a *App) get(ctx context.Context, args []string) error {
	dest := ""
	if len(args) > 1 {
		dest = args[1]
	} else {
		info, err := a.conn().GetFile(ctx, args[0])
		if err != nil {
			return err
		}
		dest = filepath.Base(info.Name)
	}

	out, err := os.OpenFile(dest, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o600)
	if err != nil {
		return err
	}

	file, err := a.conn().Download(ctx, args[0], out)
	if cerr := out.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		return errors.Join(err, os.Remove(dest))
	}

	fmt.Fprintf(a.out, "Saved %s v%d to %s\n", file.ID, file.Version, dest)
	return nil
}

func (a *App) info(ctx context.Context, args []string) error {
	f, err := a.conn().GetFile(ctx, args[0])
	if err != nil {
		return err
	}
	a.printFile(f)
	return nil
}

func (a *App) remove(ctx context.Context, args []string) error {
	if err := a.conn().DeleteFile(ctx, args[0]); err != nil {
		return err
	}
	fmt.Fprintln(a.out, "Deleted", args[0])
	return nil
}

func (a *App) revert(ctx context.Context, args []string) error {
	n, err := strconv.Atoi(args[1])
	if err != nil {
		return fmt.Errorf("version must be a number: %w", err)
	}
	f, err := a.conn().RevertFile(ctx, args[0], n)
	if err != nil {
		return err
	}
	fmt.Fprintf(a.out, "%s reverted to version %d, now v%d\n", f.ID, n, f.Version)
	return nil
}

func (a *App) updateFile(ctx context.Context, req *fkgrpc.UpdateMetadataRequest) error {
	f, err := a.conn().UpdateFileMetadata(ctx, req)
	if err != nil {
		return err
	}
	a.printFile(f)
	return nil
}

func (a *App) rename(ctx context.Context, args []string) error {
	return a.updateFile(ctx, &fkgrpc.UpdateMetadataRequest{FileID: args[0], Name: &args[1]})
}

func (a *App) tag(ctx context.Context, args []string) error {
	return a.updateFile(ctx, &fkgrpc.UpdateMetadataRequest{FileID: args[0], Tags: args[1:]})
}

func (a *App) meta(ctx context.Context, args []string) error {
	pairs, err := parsePairs(args[1:])
	if err != nil {
		return err
	}
	return a.updateFile(ctx, &fkgrpc.UpdateMetadataRequest{FileID: args[0], Metadata: pairs})
}

func (a *App) chmod(ctx context.Context, args []string) error {
	return a.updateFile(ctx, &fkgrpc.UpdateMetadataRequest{FileID: args[0], AccessLevel: &args[1]})
}

func (a *App) share(ctx context.Context, args []string) error {
	f, err := a.conn().ShareFile(ctx, args[0], args[1], args[2])
	if err != nil {
		return err
	}
	fmt.Fprintf(a.out, "%s shared with %s (%s)\n", f.ID, args[1], args[2])
	return nil
}

func (a *App) url(ctx context.Context, args []string) error {
	resp, err := a.conn().DownloadURL(ctx, args[0])
	if err != nil {
		return err
	}
	fmt.Fprintf(a.out, "%s\n(valid until %s)\n", resp.URL, resp.ExpiresAt.Format(time.RFC3339))
	return nil
}

// fetch downloads through a presigned URL instead of the gRPC stream.
func (a *App) fetch(ctx context.Context, args []string) error {
	resp, err := a.conn().DownloadURL(ctx, args[0])
	if err != nil {
		return err
	}

	out, err := os.OpenFile(args[1], os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o600)
	if err != nil {
		return err
	}

	n, err := netx.DownloadFromPresignedURL(ctx, resp.URL, out)
	if cerr := out.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		return errors.Join(err, os.Remove(args[1]))
	}

	fmt.Fprintf(a.out, "Saved %d bytes to %s\n", n, args[1])
	return nil
}

func (a *App) history(ctx context.Context, args []string) error {
	limit := 0
	if len(args) > 1 {
		n, err := strconv.Atoi(args[1])
		if err != nil {
			return fmt.Errorf("limit must be a number: %w", err)
		}
		limit = n
	}

	events, err := a.conn().AccessHistory(ctx, args[0], limit)
	if err != nil {
		return err
	}

	tw := tabwriter.NewWriter(a.out, 0, 4, 2, ' ', 0)
	for _, e := range events {
		fmt.Fprintf(tw, "%s\t%s\t%s\n", e.Timestamp.Format(time.RFC3339), e.UserID, e.AccessType)
	}
	return tw.Flush()
}

func (a *App) find(ctx context.Context, args []string) error {
	pairs, err := parsePairs(args[1:])
	if err != nil {
		return err
	}

	resp, err := a.conn().Search(ctx, &fkgrpc.SearchRequest{Query: args[0], Metadata: pairs})
	if err != nil {
		return err
	}

	if len(resp.Files) == 0 && len(resp.Folders) == 0 {
		fmt.Fprintln(a.out, "No matches")
		return nil
	}
	a.printFolders(resp.Folders)
	a.printFiles(resp.Files)
	return nil
}

func (a *App) usage(ctx context.Context, _ []string) error {
	u, err := a.conn().Usage(ctx)
	if err != nil {
		return err
	}
	fmt.Fprintf(a.out, "%s uses %d bytes\n", u.UserID, u.UsedBytes)
	return nil
}
