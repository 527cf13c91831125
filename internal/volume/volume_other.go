//go:build !linux && !windows && !darwin

package volume

func resolve(set Set) ([]string, error) {
	if set == ExceptSystem {
		return nil, nil
	}
	return []string{"/"}, nil
}
