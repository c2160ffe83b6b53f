package remote

import (
	"encoding/xml"
	"io"
	"path"
	"strconv"
	"strings"
)

type multistatus struct {
	Responses []davResponse `xml:"response"`
}

type davResponse struct {
	Href     string      `xml:"href"`
	PropStat []propStat  `xml:"propstat"`
}

type propStat struct {
	Prop prop `xml:"prop"`
}

type prop struct {
	GetETag      string `xml:"getetag"`
	ResourceType struct {
		Collection *struct{} `xml:"collection"`
	} `xml:"resourcetype"`
	GetContentLength string `xml:"getcontentlength"`
}

// parsePropfind decodes a WebDAV multistatus PROPFIND response at Depth: 1
// into a Listing. The first <response> is the directory itself; the rest
// are its immediate children.
func parsePropfind(r io.Reader, requestedPath string) (Listing, error) {
	var ms multistatus
	if err := xml.NewDecoder(r).Decode(&ms); err != nil {
		return Listing{}, err
	}
	if len(ms.Responses) == 0 {
		return Listing{}, nil
	}

	listing := Listing{}
	for i, resp := range ms.Responses {
		if len(resp.PropStat) == 0 {
			continue
		}
		p := resp.PropStat[0].Prop
		logicalPath := hrefToLogicalPath(resp.Href)

		if i == 0 {
			listing.DirectoryETag = strings.Trim(p.GetETag, `"`)
			continue
		}

		var size int64
		if p.GetContentLength != "" {
			size, _ = strconv.ParseInt(p.GetContentLength, 10, 64)
		}
		listing.Children = append(listing.Children, Entry{
			Path:  logicalPath,
			ETag:  strings.Trim(p.GetETag, `"`),
			IsDir: p.ResourceType.Collection != nil,
			Size:  size,
		})
	}
	_ = requestedPath
	return listing, nil
}

// hrefToLogicalPath strips any server-specific URL prefix off href,
// leaving a bare logical path (e.g. "/Photos/2024").
func hrefToLogicalPath(href string) string {
	for _, prefix := range []string{"/remote.php/dav/files/", "/remote.php/webdav", "/webdav"} {
		if idx := strings.Index(href, prefix); idx >= 0 {
			rest := href[idx+len(prefix):]
			if slash := strings.Index(rest, "/"); slash >= 0 {
				return path.Clean(rest[slash:])
			}
			return "/"
		}
	}
	return href
}
