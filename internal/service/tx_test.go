package service

import "context"

type testTxRepos struct {
	memories MemoryRepositoryInterface
	messages MessageRepositoryInterface
}

func (t *testTxRepos) Memories() MemoryRepositoryInterface {
	return t.memories
}

func (t *testTxRepos) Messages() MessageRepositoryInterface {
	return t.messages
}

type testTxRunner struct {
	repos  TxRepositories
	called bool
}

func (t *testTxRunner) WithTx(ctx context.Context, fn func(repos TxRepositories) error) error {
	t.called = true
	return fn(t.repos)
}
