package mocks

//go:generate mockery --name Client --srcpkg github.com/gatewise-lab/project-gatewise/internal/chain --output ./chain --outpkg chainmocks --with-expecter
//go:generate mockery --name SnapshotStore --srcpkg github.com/gatewise-lab/project-gatewise/internal/core/storage --output ./storage --outpkg storagemocks --with-expecter
