// Package yamlfile reads classification candidates, their contracts, and an
// optional hierarchy from a YAML definitions file.
package yamlfile

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/kirillkom/docpipe/internal/core/domain"
)

type classificationSpec struct {
	Name        string                `yaml:"name"`
	Description string                `yaml:"description"`
	Contract    *domain.Contract      `yaml:"contract"`
	Children    []*classificationSpec `yaml:"children,omitempty"`
}

type fileSpec struct {
	Classifications []*classificationSpec `yaml:"classifications"`
}

// Load reads the definitions file and returns both views: the flat candidate
// list (roots only) and the full tree. The tree is validated before use.
func Load(path string) ([]domain.Classification, *domain.ClassificationTree, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, nil, fmt.Errorf("read classifications file: %w", err)
	}

	var spec fileSpec
	if err := yaml.Unmarshal(raw, &spec); err != nil {
		return nil, nil, fmt.Errorf("parse classifications yaml: %w", err)
	}
	if len(spec.Classifications) == 0 {
		return nil, nil, fmt.Errorf("classifications file %s defines no classifications", path)
	}

	roots := make([]*domain.ClassificationNode, 0, len(spec.Classifications))
	flat := make([]domain.Classification, 0, len(spec.Classifications))
	for _, s := range spec.Classifications {
		node, err := buildNode(s)
		if err != nil {
			return nil, nil, err
		}
		roots = append(roots, node)
		flat = append(flat, node.Classification)
	}

	tree := &domain.ClassificationTree{Roots: roots}
	if err := tree.Validate(); err != nil {
		return nil, nil, fmt.Errorf("invalid classification tree: %w", err)
	}
	return flat, tree, nil
}

func buildNode(s *classificationSpec) (*domain.ClassificationNode, error) {
	if s.Name == "" {
		return nil, fmt.Errorf("classification without a name")
	}
	if s.Contract != nil {
		if err := s.Contract.Validate(); err != nil {
			return nil, fmt.Errorf("classification %q: %w", s.Name, err)
		}
	}
	node := &domain.ClassificationNode{
		Classification: domain.Classification{
			Name:        s.Name,
			Description: s.Description,
			Contract:    s.Contract,
		},
	}
	for _, child := range s.Children {
		childNode, err := buildNode(child)
		if err != nil {
			return nil, err
		}
		node.Children = append(node.Children, childNode)
	}
	return node, nil
}
