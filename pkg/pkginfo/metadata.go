package pkginfo

import (
	"bufio"
	"bytes"
	"fmt"
	"net/mail"
	"net/textproto"
	"strings"
)

// ParseCoreMetadata parses a core metadata document
// (https://packaging.python.org/specifications/core-metadata): RFC 822 style
// headers followed by an optional body holding the long description.
func ParseCoreMetadata(data []byte) (*PackageInfo, error) {
	reader := textproto.NewReader(bufio.NewReader(bytes.NewReader(data)))
	header, err := reader.ReadMIMEHeader()
	// An EOF right after the last header line is normal for documents
	// without a description body.
	if err != nil && len(header) == 0 {
		return nil, fmt.Errorf("parsing core metadata: %w", err)
	}

	description := header.Get("Description")
	if description == "" {
		rest := new(strings.Builder)
		for {
			line, err := reader.ReadLine()
			if err != nil {
				break
			}
			rest.WriteString(line)
			rest.WriteString("\n")
		}
		description = strings.TrimRight(rest.String(), "\n")
	}

	info := &PackageInfo{
		Summary:        header.Get("Summary"),
		Description:    description,
		URL:            header.Get("Home-Page"),
		Author:         header.Get("Author"),
		Maintainer:     header.Get("Maintainer"),
		Classifiers:    header.Values("Classifier"),
		RequiresPython: header.Get("Requires-Python"),
		RequiresDist:   header.Values("Requires-Dist"),
		ProjectURLs:    map[string]string{},
	}

	// Project-URL values look like "Documentation, https://example.org/doc".
	for _, value := range header.Values("Project-Url") {
		label, url, found := strings.Cut(value, ",")
		if !found {
			continue
		}
		info.ProjectURLs[strings.TrimSpace(label)] = strings.TrimSpace(url)
	}
	if info.URL != "" {
		if _, ok := info.ProjectURLs["Homepage"]; !ok {
			info.ProjectURLs["Homepage"] = info.URL
		}
	}

	// Fall back to the display names in the email headers when the plain
	// name fields are empty. "Jane Doe <jane@example.org>" yields "Jane Doe".
	if info.Author == "" {
		info.Author = displayNames(header.Get("Author-Email"))
	}
	if info.Maintainer == "" {
		info.Maintainer = displayNames(header.Get("Maintainer-Email"))
	}

	return info, nil
}

func displayNames(emails string) string {
	if emails == "" {
		return ""
	}
	addresses, err := mail.ParseAddressList(emails)
	if err != nil {
		return ""
	}
	var names []string
	for _, address := range addresses {
		if address.Name != "" {
			names = append(names, address.Name)
		}
	}
	return strings.Join(names, ", ")
}
